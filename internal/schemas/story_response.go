// Package schemas parses and validates the JSON payloads the language
// model returns for story generation.
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"

	"dreamlets-server/internal/ai"
	"dreamlets-server/internal/models"
)

// InvalidStoryFormatError reports a model response that could not be
// turned into a complete three-part story.
type InvalidStoryFormatError struct {
	Reason string
}

func (e *InvalidStoryFormatError) Error() string {
	return fmt.Sprintf("invalid story format: %s", e.Reason)
}

// storyResponse is the JSON-mode completion payload. The consistency
// sheet arrives as a single free-text field here.
type storyResponse struct {
	Title                 string `json:"title"`
	Part1                 string `json:"part1"`
	Part2                 string `json:"part2"`
	Part3                 string `json:"part3"`
	CharacterDescriptions string `json:"characterDescriptions"`
	ImagePrompt1          string `json:"imagePrompt1"`
	ImagePrompt2          string `json:"imagePrompt2"`
	ImagePrompt3          string `json:"imagePrompt3"`
}

// CharacterSheetEntry is one named description inside an assistant
// response or an illustration tool call.
type CharacterSheetEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// assistantStoryResponse is the payload produced by the stateful
// assistant; illustrations are handled through the tool call, so no
// image prompts appear here.
type assistantStoryResponse struct {
	Title                 string                `json:"title"`
	Part1                 string                `json:"part1"`
	Part2                 string                `json:"part2"`
	Part3                 string                `json:"part3"`
	CharacterDescriptions []CharacterSheetEntry `json:"characterDescriptions"`
}

// IllustrationToolArgs are the arguments of a generate_story_images
// tool call.
type IllustrationToolArgs struct {
	StoryTitle            string                `json:"story_title"`
	CharacterDescriptions []CharacterSheetEntry `json:"character_descriptions"`
	ImagePrompts          []string              `json:"image_prompts"`
}

// ParseIllustrationToolArgs decodes the arguments of an illustration
// tool call.
func ParseIllustrationToolArgs(raw string) (IllustrationToolArgs, error) {
	var args IllustrationToolArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return IllustrationToolArgs{}, fmt.Errorf("decode tool arguments: %w", err)
	}
	return args, nil
}

// ParseStoryResponse validates a JSON-mode completion and converts it
// into a narrative. All three parts and all three image prompts must
// be present and non-empty.
func ParseStoryResponse(raw string) (*models.Narrative, error) {
	var resp storyResponse
	if err := json.Unmarshal([]byte(ai.StripCodeFences(raw)), &resp); err != nil {
		return nil, &InvalidStoryFormatError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}

	n := &models.Narrative{
		Title:            strings.TrimSpace(resp.Title),
		Parts:            [3]string{strings.TrimSpace(resp.Part1), strings.TrimSpace(resp.Part2), strings.TrimSpace(resp.Part3)},
		ConsistencySheet: strings.TrimSpace(resp.CharacterDescriptions),
		ImagePrompts:     []string{resp.ImagePrompt1, resp.ImagePrompt2, resp.ImagePrompt3},
	}
	if err := validateNarrative(n); err != nil {
		return nil, err
	}
	for i, p := range n.ImagePrompts {
		if strings.TrimSpace(p) == "" {
			return nil, &InvalidStoryFormatError{Reason: fmt.Sprintf("image prompt %d is empty", i+1)}
		}
	}
	return n, nil
}

// ParseAssistantStoryResponse validates an assistant thread response.
// The structured character list is flattened into a consistency sheet
// so the illustration pipeline sees the same shape in both modes.
func ParseAssistantStoryResponse(raw string) (*models.Narrative, error) {
	var resp assistantStoryResponse
	if err := json.Unmarshal([]byte(ai.StripCodeFences(raw)), &resp); err != nil {
		return nil, &InvalidStoryFormatError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}

	n := &models.Narrative{
		Title:            strings.TrimSpace(resp.Title),
		Parts:            [3]string{strings.TrimSpace(resp.Part1), strings.TrimSpace(resp.Part2), strings.TrimSpace(resp.Part3)},
		ConsistencySheet: FlattenCharacterSheet(resp.CharacterDescriptions),
	}
	if err := validateNarrative(n); err != nil {
		return nil, err
	}
	return n, nil
}

// FlattenCharacterSheet joins named character descriptions into the
// single-string form used by illustration prompts.
func FlattenCharacterSheet(entries []CharacterSheetEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" && e.Description == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", e.Name, e.Description))
	}
	return strings.Join(parts, ". ")
}

func validateNarrative(n *models.Narrative) error {
	if n.Title == "" {
		return &InvalidStoryFormatError{Reason: "title is empty"}
	}
	for i, part := range n.Parts {
		if part == "" {
			return &InvalidStoryFormatError{Reason: fmt.Sprintf("story part %d is empty", i+1)}
		}
	}
	return nil
}
