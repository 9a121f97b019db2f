// Package features declares the five AI-backed endpoints as dispatch
// descriptors: request and result shapes, prompts, tool schemas and fallbacks.
package features

import (
	"encoding/json"
	"strings"
)

// StringList accepts either a JSON string or an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			*l = nil
		} else {
			*l = StringList{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// Join returns the items joined with ", ", or def when there are none.
func (l StringList) Join(def string) string {
	items := make([]string, 0, len(l))
	for _, s := range l {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	if len(items) == 0 {
		return def
	}
	return strings.Join(items, ", ")
}

// ChatMessage is one turn of the conversation sent by the client
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat-assistant body
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// MealPlanRequest is the generate-meal-plan body
type MealPlanRequest struct {
	Goals               StringList `json:"goals"`
	DietaryRestrictions StringList `json:"dietaryRestrictions"`
	CalorieTarget       int        `json:"calorieTarget"`
	Preferences         StringList `json:"preferences"`
}

// Meal is one entry of a meal plan
type Meal struct {
	MealType     string   `json:"mealType"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Calories     float64  `json:"calories"`
	Protein      float64  `json:"protein"`
	Carbs        float64  `json:"carbs"`
	Fat          float64  `json:"fat"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
}

// MealPlan is the structured meal plan result
type MealPlan struct {
	PlanName      string  `json:"planName"`
	Description   string  `json:"description"`
	TotalCalories float64 `json:"totalCalories"`
	TotalProtein  float64 `json:"totalProtein"`
	TotalCarbs    float64 `json:"totalCarbs"`
	TotalFat      float64 `json:"totalFat"`
	Meals         []Meal  `json:"meals"`
}

// WorkoutRequest is the generate-workout body
type WorkoutRequest struct {
	FitnessLevel string     `json:"fitnessLevel"`
	Goals        StringList `json:"goals"`
	Duration     int        `json:"duration"`
	Equipment    StringList `json:"equipment"`
	WorkoutType  string     `json:"workoutType"`
}

// Exercise is one step of a workout
type Exercise struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Sets         *float64 `json:"sets,omitempty"`
	Reps         *float64 `json:"reps,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	RestTime     *float64 `json:"restTime,omitempty"`
	Instructions string   `json:"instructions"`
}

// WorkoutPlan is the structured workout result
type WorkoutPlan struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	TotalDuration     float64    `json:"totalDuration"`
	EstimatedCalories float64    `json:"estimatedCalories"`
	Exercises         []Exercise `json:"exercises"`
}

// VideoRequest is the analyze-video body. One of VideoURL or VideoPath is required.
type VideoRequest struct {
	VideoURL     string `json:"videoUrl"`
	VideoPath    string `json:"videoPath"`
	ExerciseType string `json:"exerciseType"`
}

// KeyPoints groups observations by whether they were done well
type KeyPoints struct {
	GoodForm         []string `json:"goodForm"`
	NeedsImprovement []string `json:"needsImprovement"`
}

// VideoAnalysis is the structured form analysis of a workout video
type VideoAnalysis struct {
	FormScore              float64    `json:"formScore"`
	Feedback               string     `json:"feedback"`
	ImprovementSuggestions []string   `json:"improvementSuggestions"`
	KeyPoints              *KeyPoints `json:"keyPoints,omitempty"`
}

// PostureRequest is the analyze-posture-realtime body
type PostureRequest struct {
	// ImageData is a data: URL or an http(s) image URL
	ImageData    string `json:"imageData"`
	ExerciseType string `json:"exerciseType"`
}

// PostureFeedback is the structured posture check result
type PostureFeedback struct {
	Score       float64  `json:"score"`
	Feedback    string   `json:"feedback"`
	Corrections []string `json:"corrections"`
}
