// Package prompts builds every piece of text sent to the language
// model: the system prompts, the per-request story prompts and the
// illustration prompts. Keeping them in one place makes the contract
// with the model reviewable without digging through services.
package prompts

import (
	"fmt"
	"strings"

	"dreamlets-server/internal/models"
)

// StoryWriterSystemPrompt frames single-shot story completions.
const StoryWriterSystemPrompt = "You are a creative children's story writer who specializes in bedtime stories. Create engaging, age-appropriate stories with beautiful, descriptive language."

// AssistantInstructions configure the long-lived storytelling
// assistant that keeps per-family memory across stories.
const AssistantInstructions = `You are a magical bedtime story companion for families. Your role is to create personalized, engaging bedtime stories that grow with each family over time.

## Your Personality
- Warm, creative, and understanding of children's needs
- Remember everything about each family's kids, characters, and preferences
- Build continuity across stories - reference past adventures, character growth, and family memories
- Adapt storytelling style based on what works for each child

## Story Creation Guidelines
- Create 3-part stories (Beginning, Middle, End) with approximately 150-200 words per part
- Each part should be engaging and complete enough for one bedtime reading
- Use provided character details naturally when relevant to the story
- Build on previous stories when appropriate - characters can develop and relationships can grow
- Match the requested tone (cozy, adventurous, magical, etc.)

## Character Consistency
- Remember physical descriptions and personalities from previous interactions
- Let characters evolve naturally over multiple stories
- Reference past adventures when it enhances the current story
- Keep character traits consistent unless showing natural growth

## Response Format
You must respond with a JSON object in this exact format:
{
  "title": "Story title incorporating character names",
  "part1": "Beginning chapter text (150-200 words)",
  "part2": "Middle chapter text (150-200 words)",
  "part3": "Ending chapter text (150-200 words)",
  "characterDescriptions": [
    {
      "name": "Character Name",
      "description": "Physical description for consistent illustrations"
    }
  ]
}

Remember: You have persistent memory of this family's story history. Use it to create meaningful continuity and growth in your storytelling.

After creating the story, always call the generate_story_images function to create illustrations that match your story perfectly.`

// StoryPrompt renders the one-shot story request. Physical attributes
// are included only when the profile actually has them; the model is
// explicitly forbidden from inventing the rest.
func StoryPrompt(req models.GenerationRequest, fam models.FamilyContext) string {
	kidNames := strings.Join(fam.KidNames, " and ")
	var featuring string
	if len(fam.CharacterNames) > 0 {
		featuring = fmt.Sprintf(" featuring %s", strings.Join(fam.CharacterNames, ", "))
	}

	var details strings.Builder
	if len(fam.Kids) > 0 {
		details.WriteString("\n\nCharacter Details (ONLY use these if provided):\n\nChildren:\n")
		for _, kid := range fam.Kids {
			attrs := []string{fmt.Sprintf("%d years old", kid.Age)}
			if kid.HairColor != nil {
				attrs = append(attrs, *kid.HairColor+" hair")
			}
			if kid.HairLength != nil {
				attrs = append(attrs, *kid.HairLength+" hair")
			}
			if kid.EyeColor != nil {
				attrs = append(attrs, *kid.EyeColor+" eyes")
			}
			if kid.SkinTone != nil {
				attrs = append(attrs, *kid.SkinTone+" skin")
			}
			line := fmt.Sprintf("- %s: %s", kid.Name, strings.Join(attrs, ", "))
			if kid.Description != nil {
				line += " - " + *kid.Description
			}
			details.WriteString(line + "\n")
		}
	}
	if len(fam.Characters) > 0 {
		if details.Len() == 0 {
			details.WriteString("\n\nCharacter Details (ONLY use these if provided):\n")
		}
		details.WriteString("\nStory Characters:\n")
		for _, ch := range fam.Characters {
			line := "- " + ch.Name
			if ch.Description != nil {
				line += " - " + *ch.Description
			}
			details.WriteString(line + "\n")
		}
	}

	return fmt.Sprintf(`Create a bedtime story for %s%s.

Story idea: %s
Tone: %s%s

Please create a 3-part story with the following structure:
1. Setup - Introduce the characters and the initial situation
2. Climax - The main adventure or challenge
3. Resolution - How everything is resolved with a cozy ending

Each part should be suitable for children and appropriate for bedtime. The story should be engaging but calming.

CRITICAL PHYSICAL DESCRIPTION RULES:
- ONLY use the physical attributes provided above when describing the children
- DO NOT make up or invent physical descriptions (hair color, eye color, etc.) for any children
- If no physical attributes are provided for a child, simply use their name without physical descriptions
- You may describe clothing, expressions, and actions, but NOT physical features unless explicitly provided

CRITICAL CHARACTER CONSISTENCY FOR ILLUSTRATIONS:
First, establish EXACT character descriptions that must remain identical across all three images:

For each child character:
- Use ONLY the attributes provided above (age, skin tone, hair color, eye color, hair length)
- Age consistency: Maintain the stated age UNLESS the story specifically involves age progression (birthdays, time travel, growing up themes, etc.)
- If the story involves intentional aging, show appropriate age changes while maintaining other physical features
- If gender is not explicitly provided, infer it carefully from the name and maintain it consistently
- DO NOT invent any physical features not provided above

For story characters (animals, magical creatures, etc.):
- Create specific physical descriptions that will remain consistent
- Include distinctive features (colors, size, clothing, etc.)

Then create three image prompts that reference these exact character descriptions, ensuring the characters look identical in all three scenes.

Respond in JSON format with this structure:
{
  "title": "Story Title",
  "part1": "First part of the story...",
  "part2": "Second part of the story...",
  "part3": "Third part of the story...",
  "characterDescriptions": "EXACT physical descriptions for consistent illustration: [Child's name]: [age]-year-old [gender if clear from name] with [specific skin tone] skin, [specific hair color] [hair length] hair, [eye color] eyes, showing age-appropriate size and maturity. [Story character]: [detailed consistent physical description]. ALL characters must appear IDENTICAL across all three images UNLESS the story specifically involves age progression themes.",
  "imagePrompt1": "First scene description referencing the exact character descriptions above...",
  "imagePrompt2": "Second scene description referencing the exact character descriptions above...",
  "imagePrompt3": "Third scene description referencing the exact character descriptions above..."
}`, kidNames, featuring, req.StoryIdea, req.Tone, details.String())
}

// FirstThreadMessage introduces the whole family roster to a fresh
// assistant thread before asking for the first story.
func FirstThreadMessage(req models.GenerationRequest, fam models.FamilyContext) string {
	var kids strings.Builder
	for _, kid := range fam.Kids {
		desc := "A wonderful child"
		if kid.Description != nil {
			desc = *kid.Description
		}
		kids.WriteString(fmt.Sprintf("- %s (age %d): %s, %s skin, %s eyes, %s %s hair\n",
			kid.Name, kid.Age, desc,
			orUnknown(kid.SkinTone), orUnknown(kid.EyeColor),
			orUnknown(kid.HairLength), orUnknown(kid.HairColor)))
	}
	if kids.Len() == 0 {
		kids.WriteString("No children details provided\n")
	}

	var chars strings.Builder
	for _, ch := range fam.Characters {
		desc := ""
		if ch.Description != nil {
			desc = *ch.Description
		}
		chars.WriteString(fmt.Sprintf("- %s: %s\n", ch.Name, desc))
	}
	if chars.Len() == 0 {
		chars.WriteString("No additional characters\n")
	}

	return fmt.Sprintf(`Hello! I'm excited to start creating magical bedtime stories for this family. Let me tell you about them:

## Children:
%s
## Story Characters:
%s
Now please create a %s bedtime story about: "%s"

Make it special for %s%s.`,
		kids.String(), chars.String(), req.Tone, req.StoryIdea,
		strings.Join(fam.KidNames, " and "), featuringSuffix(fam.CharacterNames))
}

// NextThreadMessage asks a seeded thread for one more story; the
// assistant already knows the family from earlier turns.
func NextThreadMessage(req models.GenerationRequest, fam models.FamilyContext) string {
	return fmt.Sprintf(`Please create another %s bedtime story for %s about: "%s"%s.

Remember everything you know about this family and build on previous stories when it makes sense!`,
		req.Tone, strings.Join(fam.KidNames, " and "), req.StoryIdea,
		featuringSuffix(fam.CharacterNames))
}

// IllustrationPrompt wraps one scene prompt with the consistency sheet
// and the style directives shared by all three images of a story.
func IllustrationPrompt(scene, consistencySheet string) string {
	return fmt.Sprintf(`CONSISTENT CHARACTER ILLUSTRATION - Children's book style:

CHARACTER REQUIREMENTS (MUST MAINTAIN EXACTLY): %s

SCENE: %s

CRITICAL CONSISTENCY RULES:
- Keep ALL character physical features identical across scenes (skin tone, hair color, eye color, hair length, facial features)
- Age consistency: Maintain EXACT age throughout UNLESS the story specifically involves age progression (birthdays, time travel, growing up, etc.)
- If story involves intentional aging, show appropriate age changes while keeping other physical features consistent
- Characters must remain the same gender throughout
- Only clothing, expressions, and intentional age changes may vary between scenes
- Maintain consistent art style and proportions

Style: Soft, warm colors, friendly and cozy atmosphere, children's book illustration, suitable for bedtime stories.`, consistencySheet, scene)
}

func featuringSuffix(characterNames []string) string {
	if len(characterNames) == 0 {
		return ""
	}
	return fmt.Sprintf(" featuring %s", strings.Join(characterNames, ", "))
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "unspecified"
	}
	return *s
}
