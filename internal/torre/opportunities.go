package torre

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// maxDetailLines caps how many bullet lines are kept from one detail section.
const maxDetailLines = 50

// Opportunity is a job opening as returned by the opportunities endpoint.
type Opportunity struct {
	ExternalID       string
	Objective        string
	Strengths        []string
	Responsibilities []string
}

type opportunityPayload struct {
	Objective string `json:"objective"`
	Details   []struct {
		Code    string `json:"code"`
		Content string `json:"content"`
	} `json:"details"`
	Strengths []nameField `json:"strengths"`
}

// GetOpportunity fetches and parses the opportunity with the given external
// id. It returns [ErrNotFound] when the opportunity does not exist.
func (c *Client) GetOpportunity(ctx context.Context, externalID string) (Opportunity, error) {
	body, err := c.get(ctx, c.baseURL+"/api/suite/opportunities/"+externalID)
	if err != nil {
		return Opportunity{}, err
	}

	var payload opportunityPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Opportunity{}, fmt.Errorf("torre: parse opportunity: %w", err)
	}

	o := Opportunity{
		ExternalID: externalID,
		Objective:  payload.Objective,
	}
	for _, d := range payload.Details {
		code := strings.ToLower(d.Code)
		switch {
		case strings.Contains(code, "strength"):
			o.Strengths = splitDetailLines(d.Content)
		case strings.Contains(code, "responsibilit"):
			o.Responsibilities = splitDetailLines(d.Content)
		}
	}
	if len(o.Strengths) == 0 {
		for _, s := range payload.Strengths {
			if s.Name != "" {
				o.Strengths = append(o.Strengths, s.Name)
			}
		}
	}
	return o, nil
}

// splitDetailLines splits a detail section on newlines and bullet characters
// and trims the fragments.
func splitDetailLines(content string) []string {
	if content == "" {
		return nil
	}
	fields := strings.FieldsFunc(content, func(r rune) bool {
		return r == '\n' || r == '•' || r == '·'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
			if len(out) == maxDetailLines {
				break
			}
		}
	}
	return out
}
