package torre

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// maxPriorJobs caps how many prior positions are kept from a genome bio.
const maxPriorJobs = 20

// Bio is a candidate profile as returned by the genome bios endpoint.
type Bio struct {
	Username string
	FullName string
	Skills   []string
	Jobs     []domain.PriorJob
}

// nameField decodes either a plain string or an object with a "name" key,
// both of which the API uses for strengths entries.
type nameField struct {
	Name string
}

func (f *nameField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Name = obj.Name
	return nil
}

type bioPayload struct {
	Person struct {
		Name      string `json:"name"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"person"`
	Strengths  []nameField `json:"strengths"`
	Experience []bioJob    `json:"experience"`
	Jobs       []bioJob    `json:"jobs"`
}

type bioJob struct {
	Name         string `json:"name"`
	Title        string `json:"title"`
	Organization string `json:"organization"`
}

// GetBio fetches and parses the genome bio for username. It returns
// [ErrNotFound] when the username does not exist.
func (c *Client) GetBio(ctx context.Context, username string) (Bio, error) {
	body, err := c.get(ctx, c.baseURL+"/api/genome/bios/"+username)
	if err != nil {
		return Bio{}, err
	}

	var payload bioPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Bio{}, fmt.Errorf("torre: parse bio: %w", err)
	}

	fullName := payload.Person.Name
	if fullName == "" {
		fullName = strings.TrimSpace(payload.Person.FirstName + " " + payload.Person.LastName)
	}
	if fullName == "" {
		fullName = username
	}

	skills := make([]string, 0, len(payload.Strengths))
	for _, s := range payload.Strengths {
		if s.Name != "" {
			skills = append(skills, s.Name)
		}
	}

	// The API has shipped prior positions under both keys over time.
	raw := payload.Experience
	if len(raw) == 0 {
		raw = payload.Jobs
	}
	if len(raw) > maxPriorJobs {
		raw = raw[:maxPriorJobs]
	}
	jobs := make([]domain.PriorJob, 0, len(raw))
	for _, j := range raw {
		title := j.Name
		if title == "" {
			title = j.Title
		}
		jobs = append(jobs, domain.PriorJob{Title: title, Organization: j.Organization})
	}

	return Bio{
		Username: username,
		FullName: fullName,
		Skills:   skills,
		Jobs:     jobs,
	}, nil
}
