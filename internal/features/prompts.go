package features

import (
	"encoding/json"
	"fmt"
	"strings"

	"ascendfit/internal/core"
)

const chatSystemPrompt = `You are AscendFit AI, a knowledgeable and motivating fitness assistant. You help users with:
- Exercise form and technique guidance
- Workout planning and modifications
- Nutrition advice and meal planning
- Motivation and fitness tips
- Progress tracking and goal setting

Be encouraging, clear, and practical in your responses. Keep answers concise unless detailed explanations are requested.`

const workoutSystemPrompt = "You are an expert fitness trainer creating personalized workout plans. " +
	"Generate workout plans that are safe, effective, and tailored to the user's fitness level and goals."

const postureSystemPrompt = "You are a fitness coach providing real-time posture feedback. Give brief, actionable corrections."

const mealPlanFormat = `{
  "planName": "<name>",
  "description": "<description>",
  "totalCalories": <number>,
  "totalProtein": <number>,
  "totalCarbs": <number>,
  "totalFat": <number>,
  "meals": [
    {
      "mealType": "breakfast|lunch|dinner|snack",
      "name": "<meal name>",
      "description": "<description>",
      "calories": <number>,
      "protein": <number>,
      "carbs": <number>,
      "fat": <number>,
      "ingredients": ["<ingredient 1>", "<ingredient 2>"],
      "instructions": "<cooking instructions>"
    }
  ]
}`

func mealPlanPrompt(in *MealPlanRequest) string {
	calories := in.CalorieTarget
	if calories <= 0 {
		calories = 2000
	}
	var b strings.Builder
	b.WriteString("Create a daily meal plan for someone with the following requirements:\n")
	fmt.Fprintf(&b, "Goals: %s\n", in.Goals.Join("general health"))
	fmt.Fprintf(&b, "Dietary restrictions: %s\n", in.DietaryRestrictions.Join("none"))
	fmt.Fprintf(&b, "Daily calorie target: %d calories\n", calories)
	fmt.Fprintf(&b, "Preferences: %s\n\n", in.Preferences.Join("balanced diet"))
	b.WriteString("Include breakfast, lunch, dinner, and 2 snacks. For each meal, provide nutritional information and ingredients.\n\n")
	b.WriteString("Format your response as JSON with this structure:\n")
	b.WriteString(mealPlanFormat)
	return b.String()
}

func workoutPrompt(in *WorkoutRequest) string {
	duration := in.Duration
	if duration <= 0 {
		duration = 30
	}
	return fmt.Sprintf("Create a %d-minute %s workout plan for someone with %s fitness level.\n"+
		"Goals: %s\n"+
		"Available equipment: %s\n"+
		"Include warm-up, main exercises, and cool-down. For each exercise, provide sets, reps/duration, and brief instructions.",
		duration,
		orDefault(in.WorkoutType, "full body"),
		orDefault(in.FitnessLevel, "intermediate"),
		in.Goals.Join("general fitness"),
		in.Equipment.Join("bodyweight only"),
	)
}

func videoPrompt(exerciseType string) string {
	if exerciseType == "" {
		return "Analyze this workout video for proper form. Return JSON with formScore, feedback, and improvementSuggestions."
	}
	return fmt.Sprintf(`Analyze this %s workout video for proper form and technique. Provide:
1. Overall form score (0-100)
2. Detailed feedback on technique
3. Specific improvement suggestions

Return ONLY valid JSON with this structure:
{"formScore": 85, "feedback": "detailed feedback here", "improvementSuggestions": ["tip 1", "tip 2", "tip 3"]}`, exerciseType)
}

func posturePrompt(exerciseType string) string {
	if exerciseType == "" {
		return "Analyze the posture in this image. Provide brief feedback."
	}
	return fmt.Sprintf("Analyze posture for %s. Provide brief feedback on form.", exerciseType)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// Tool schemas are JSON Schema objects passed verbatim to the provider.

var workoutTool = &core.ToolSchema{
	Name:        "create_workout_plan",
	Description: "Create a structured workout plan",
	Parameters: mustJSON(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":             map[string]any{"type": "string"},
			"description":       map[string]any{"type": "string"},
			"totalDuration":     map[string]any{"type": "number"},
			"estimatedCalories": map[string]any{"type": "number"},
			"exercises": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":         map[string]any{"type": "string"},
						"type":         map[string]any{"type": "string", "enum": []string{"warmup", "main", "cooldown"}},
						"sets":         map[string]any{"type": "number"},
						"reps":         map[string]any{"type": "number"},
						"duration":     map[string]any{"type": "number"},
						"restTime":     map[string]any{"type": "number"},
						"instructions": map[string]any{"type": "string"},
					},
					"required": []string{"name", "type", "instructions"},
				},
			},
		},
		"required": []string{"title", "description", "totalDuration", "estimatedCalories", "exercises"},
	}),
}

var postureTool = &core.ToolSchema{
	Name:        "provide_posture_feedback",
	Description: "Provide quick posture analysis",
	Parameters: mustJSON(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":       map[string]any{"type": "number", "description": "Posture score from 0-100"},
			"feedback":    map[string]any{"type": "string", "description": "Brief feedback message"},
			"corrections": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "List of quick corrections"},
		},
		"required": []string{"score", "feedback", "corrections"},
	}),
}

var videoTool = &core.ToolSchema{
	Name:        "report_form_analysis",
	Description: "Report the form analysis of a workout video",
	Parameters: mustJSON(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"formScore":              map[string]any{"type": "number", "description": "Overall form score from 0-100"},
			"feedback":               map[string]any{"type": "string", "description": "Detailed feedback on technique"},
			"improvementSuggestions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"keyPoints": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"goodForm":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"needsImprovement": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
		"required": []string{"formScore", "feedback", "improvementSuggestions"},
	}),
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
