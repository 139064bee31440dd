// Package analysis computes and serves fit scores: once a screening call
// finishes, the transcript, candidate profile, and job offer are combined
// into a single [0, 100] score with the matched skills, persisted uniquely
// per application.
package analysis

import (
	"math"
	"strings"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

const (
	maxSkills          = 10
	maxStrengthMatches = 10
	maxCandidateSkills = 5

	ruleBaseScore       = 40
	ruleSegmentWeight   = 5
	ruleSkillWeight     = 10
	minTranscriptLength = 2
)

// deriveSkills extracts the skill list for an analysis: job-offer strengths
// the candidate actually mentioned, falling back to the candidate's own top
// skills when nothing matched. Empty when the transcript is too short to say
// anything.
func deriveSkills(transcript []domain.TranscriptSegment, candidate *domain.Candidate, offer *domain.JobOffer) []string {
	text := candidateText(transcript)
	if text == "" {
		return []string{}
	}

	skills := []string{}
	if offer != nil {
		lower := strings.ToLower(text)
		strengths := offer.Strengths
		if len(strengths) > maxStrengthMatches {
			strengths = strengths[:maxStrengthMatches]
		}
		for _, s := range strengths {
			if s != "" && strings.Contains(lower, strings.ToLower(s)) {
				skills = append(skills, s)
			}
		}
	}
	if len(skills) == 0 && candidate != nil {
		skills = append(skills, candidate.Skills...)
		if len(skills) > maxCandidateSkills {
			skills = skills[:maxCandidateSkills]
		}
	}
	if len(skills) > maxSkills {
		skills = skills[:maxSkills]
	}
	return skills
}

// candidateText joins everything the candidate said. Empty when the
// transcript has fewer than two segments.
func candidateText(transcript []domain.TranscriptSegment) string {
	if len(transcript) < minTranscriptLength {
		return ""
	}
	var parts []string
	for _, s := range transcript {
		if s.Speaker == domain.SpeakerCandidate {
			parts = append(parts, s.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ruleScore is the rule-based fit score: a base for completing the call,
// plus weight per transcript segment and per matched skill. Zero for calls
// where the candidate never said anything.
func ruleScore(transcript []domain.TranscriptSegment, skills []string) int {
	if candidateText(transcript) == "" {
		return 0
	}
	score := ruleBaseScore + ruleSegmentWeight*len(transcript) + ruleSkillWeight*len(skills)
	if score > 100 {
		score = 100
	}
	return score
}

// embeddingScore maps the cosine similarity of the candidate and job-offer
// vectors onto [0, 100]. ok is false when the vectors are unusable (missing,
// mismatched length, or zero magnitude).
func embeddingScore(candidateVec, offerVec []float32) (int, bool) {
	cos, ok := cosine(candidateVec, offerVec)
	if !ok {
		return 0, false
	}
	score := int(math.Round((cos + 1) / 2 * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, true
}

func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
