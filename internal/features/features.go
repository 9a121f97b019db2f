package features

import (
	"context"
	"strings"

	"ascendfit/config"
	"ascendfit/internal/core"
	"ascendfit/internal/dispatch"
)

// Feature names used in logs, metrics, history and routes
const (
	NameChat     = "chat-assistant"
	NameMealPlan = "generate-meal-plan"
	NameWorkout  = "generate-workout"
	NameVideo    = "analyze-video"
	NamePosture  = "analyze-posture-realtime"
)

// Set holds one descriptor per endpoint
type Set struct {
	Chat     *dispatch.StreamFeature[ChatRequest]
	MealPlan *dispatch.Feature[MealPlanRequest, MealPlan]
	Workout  *dispatch.Feature[WorkoutRequest, WorkoutPlan]
	Video    *dispatch.Feature[VideoRequest, VideoAnalysis]
	Posture  *dispatch.Feature[PostureRequest, PostureFeedback]
}

// New builds the feature set from the per-feature provider routes. video may
// be nil, in which case analyze-video fails with an internal error.
func New(cfg config.FeaturesConfig, video *VideoPipeline) *Set {
	return &Set{
		Chat: &dispatch.StreamFeature[ChatRequest]{
			Name:        NameChat,
			Provider:    cfg.Chat.Provider,
			Model:       cfg.Chat.Model,
			Validate:    validateChat,
			Messages:    chatMessages,
			Temperature: dispatch.Float64(0.7),
			MaxTokens:   dispatch.Int(2048),
		},
		MealPlan: &dispatch.Feature[MealPlanRequest, MealPlan]{
			Name:     NameMealPlan,
			Provider: cfg.MealPlan.Provider,
			Model:    cfg.MealPlan.Model,
			Validate: validateMealPlan,
			Messages: func(in *MealPlanRequest, _ []core.Part) []core.Message {
				return []core.Message{core.TextMessage(core.RoleUser, mealPlanPrompt(in))}
			},
			Temperature: dispatch.Float64(0.7),
			MaxTokens:   dispatch.Int(4096),
			Fallback:    mealPlanFallback,
			Cacheable:   true,
		},
		Workout: &dispatch.Feature[WorkoutRequest, WorkoutPlan]{
			Name:     NameWorkout,
			Provider: cfg.Workout.Provider,
			Model:    cfg.Workout.Model,
			Validate: validateWorkout,
			Messages: func(in *WorkoutRequest, _ []core.Part) []core.Message {
				return []core.Message{
					core.TextMessage(core.RoleSystem, workoutSystemPrompt),
					core.TextMessage(core.RoleUser, workoutPrompt(in)),
				}
			},
			Tool:      workoutTool,
			Fallback:  workoutFallback,
			Cacheable: true,
		},
		Video: &dispatch.Feature[VideoRequest, VideoAnalysis]{
			Name:     NameVideo,
			Provider: cfg.Video.Provider,
			Model:    cfg.Video.Model,
			Validate: validateVideo,
			Prepare:  videoPrepare(video),
			Messages: func(in *VideoRequest, attached []core.Part) []core.Message {
				parts := append([]core.Part{{Type: core.PartText, Text: videoPrompt(in.ExerciseType)}}, attached...)
				return []core.Message{{Role: core.RoleUser, Parts: parts}}
			},
			Tool:        videoTool,
			Temperature: dispatch.Float64(0.4),
			MaxTokens:   dispatch.Int(2048),
			Fallback:    videoFallback,
			Score:       func(out *VideoAnalysis) *float64 { return dispatch.Float64(out.FormScore) },
		},
		Posture: &dispatch.Feature[PostureRequest, PostureFeedback]{
			Name:     NamePosture,
			Provider: cfg.Posture.Provider,
			Model:    cfg.Posture.Model,
			Validate: validatePosture,
			Messages: func(in *PostureRequest, _ []core.Part) []core.Message {
				return []core.Message{
					core.TextMessage(core.RoleSystem, postureSystemPrompt),
					{Role: core.RoleUser, Parts: []core.Part{
						{Type: core.PartText, Text: posturePrompt(in.ExerciseType)},
						{Type: core.PartImageURL, ImageURL: in.ImageData},
					}},
				}
			},
			Tool:     postureTool,
			Fallback: postureFallback,
			Score:    func(out *PostureFeedback) *float64 { return dispatch.Float64(out.Score) },
		},
	}
}

func videoPrepare(video *VideoPipeline) dispatch.PrepareFunc[VideoRequest] {
	if video == nil {
		return func(context.Context, *VideoRequest) ([]core.Part, func(), error) {
			return nil, nil, core.NewInternalError("video analysis is not configured", nil)
		}
	}
	return video.Prepare
}

func chatMessages(in *ChatRequest) []core.Message {
	msgs := make([]core.Message, 0, len(in.Messages)+1)
	msgs = append(msgs, core.TextMessage(core.RoleSystem, chatSystemPrompt))
	for _, m := range in.Messages {
		role := core.RoleUser
		if m.Role == core.RoleAssistant {
			role = core.RoleAssistant
		}
		msgs = append(msgs, core.TextMessage(role, m.Content))
	}
	return msgs
}

func validateChat(in *ChatRequest) error {
	if len(in.Messages) == 0 {
		return core.NewValidationError("messages array is required")
	}
	return nil
}

func validateMealPlan(in *MealPlanRequest) error {
	if in.CalorieTarget < 0 || in.CalorieTarget > 10000 {
		return core.NewValidationError("calorieTarget must be between 0 and 10000")
	}
	return nil
}

func validateWorkout(in *WorkoutRequest) error {
	if in.Duration < 0 || in.Duration > 300 {
		return core.NewValidationError("duration must be between 0 and 300 minutes")
	}
	return nil
}

func validateVideo(in *VideoRequest) error {
	if strings.TrimSpace(in.VideoPath) == "" && strings.TrimSpace(in.VideoURL) == "" {
		return core.NewValidationError("videoPath or videoUrl is required")
	}
	return nil
}

func validatePosture(in *PostureRequest) error {
	if strings.TrimSpace(in.ImageData) == "" {
		return core.NewValidationError("imageData is required")
	}
	return nil
}

func mealPlanFallback(raw string) MealPlan {
	return MealPlan{
		PlanName:    "Daily meal plan",
		Description: strings.TrimSpace(raw),
		Meals:       []Meal{},
	}
}

func workoutFallback(raw string) WorkoutPlan {
	return WorkoutPlan{
		Title:       "Workout plan",
		Description: strings.TrimSpace(raw),
		Exercises:   []Exercise{},
	}
}

func videoFallback(raw string) VideoAnalysis {
	return VideoAnalysis{
		FormScore:              75,
		Feedback:               raw,
		ImprovementSuggestions: []string{"Continue practicing with proper form"},
		KeyPoints: &KeyPoints{
			GoodForm:         []string{"Exercise performed"},
			NeedsImprovement: []string{"Review technique details"},
		},
	}
}

func postureFallback(string) PostureFeedback {
	return PostureFeedback{
		Score:       80,
		Feedback:    "Good form overall",
		Corrections: []string{"Keep practicing"},
	}
}
