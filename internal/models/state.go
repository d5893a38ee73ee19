// Package models defines conversation state structures for WaterWallet flows.
package models

import "time"

// Flow identifies which top-level feature a user is working through.
type Flow string

// Step identifies a single position in a flow's decision tree.
type Step string

// AnswerKey is a key for a value collected from the user during a flow.
type AnswerKey string

// Flow values.
const (
	FlowNone      Flow = ""
	FlowSowing    Flow = "sowing"
	FlowSolvency  Flow = "solvency"
	FlowRecommend Flow = "recommend"
)

// Step values. A session always starts at the main menu.
const (
	StepMainMenu Step = "MAIN_MENU"

	StepSowingCollectCrop     Step = "SOWING_COLLECT_CROP"
	StepSowingCollectLocation Step = "SOWING_COLLECT_LOCATION"

	StepRecommendCollectLocation Step = "RECOMMEND_COLLECT_LOCATION"

	StepSolvencySelectArea     Step = "SOLVENCY_SELECT_AREA"
	StepSolvencySelectDistrict Step = "SOLVENCY_SELECT_DISTRICT"
	StepSolvencySelectTaluka   Step = "SOLVENCY_SELECT_TALUKA"
	StepSolvencySelectVillage  Step = "SOLVENCY_SELECT_VILLAGE"
	StepSolvencySelectSurvey   Step = "SOLVENCY_SELECT_SURVEY"
)

// Answer keys.
const (
	AnswerCrop         AnswerKey = "crop"
	AnswerLatitude     AnswerKey = "latitude"
	AnswerLongitude    AnswerKey = "longitude"
	AnswerArea         AnswerKey = "area" // "U" or "R"
	AnswerDistrictCode AnswerKey = "districtCode"
	AnswerTalukaCode   AnswerKey = "talukaCode"
	AnswerVillageCode  AnswerKey = "villageCode"
	AnswerSurveyNo     AnswerKey = "surveyNo"
)

// Session tracks one user's position in the conversation. It is a plain record:
// all validation and transition logic lives in the conversation engine.
type Session struct {
	UserID  string                `json:"user_id"`
	Step    Step                  `json:"step"`
	Flow    Flow                  `json:"flow"`
	Answers map[AnswerKey]string  `json:"answers"`

	// ChoiceMap maps a displayed numeric index to the underlying option code.
	// It is only valid for the immediately following inbound message and is
	// rebuilt every time a numbered list is presented.
	ChoiceMap map[int]string `json:"choice_map"`

	// ListPrompt is the rendered text of the list ChoiceMap refers to, kept so
	// an invalid selection can be re-prompted with exactly the same list.
	ListPrompt string `json:"list_prompt"`

	// InvalidCount counts consecutive invalid inputs at the current step.
	InvalidCount int `json:"invalid_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a fresh session positioned at the main menu.
func NewSession(userID string) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		Step:      StepMainMenu,
		Answers:   make(map[AnswerKey]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset clears all flow data and returns the session to the main menu.
// It is idempotent.
func (s *Session) Reset() {
	s.Step = StepMainMenu
	s.Flow = FlowNone
	s.Answers = make(map[AnswerKey]string)
	s.ChoiceMap = nil
	s.ListPrompt = ""
	s.InvalidCount = 0
	s.UpdatedAt = time.Now()
}
