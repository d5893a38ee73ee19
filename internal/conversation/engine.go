// Package conversation implements the per-user conversation state machine for
// WaterWallet. The engine owns the user-to-session mapping, interprets each
// inbound message against the session's current step, validates input, invokes
// the backend query clients, and produces one outbound text per message.
//
// HandleIncoming never fails: every error condition resolves to a user-facing
// string, so the transport boundary never has to handle faults.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/jalniti/waterwallet/internal/backend"
	"github.com/jalniti/waterwallet/internal/models"
	"github.com/jalniti/waterwallet/internal/store"
)

// DefaultMaxInvalid is the number of consecutive invalid inputs at one step
// after which the session is reset to the main menu.
const DefaultMaxInvalid = 3

// SowingAPI is the sowing advisory client surface the engine depends on.
type SowingAPI interface {
	BestSowingWindow(ctx context.Context, crop string, lat, lon float64) (backend.SowingWindow, error)
}

// SolvencyAPI is the solvency/hierarchy client surface the engine depends on.
type SolvencyAPI interface {
	Districts(ctx context.Context, area string) ([]backend.ListOption, error)
	Talukas(ctx context.Context, area, districtCode string) ([]backend.ListOption, error)
	Villages(ctx context.Context, area, districtCode, talukaCode string) ([]backend.ListOption, error)
	Surveys(ctx context.Context, area, districtCode, talukaCode, villageCode string) ([]backend.ListOption, error)
	GroundwaterBalance(ctx context.Context, params backend.BalanceParams) (backend.GroundwaterBalance, error)
	TopCrops(ctx context.Context, lat, lon float64) (backend.TopCrops, error)
}

// Engine routes inbound messages through the step/transition table.
type Engine struct {
	sessions   store.SessionStore
	sowing     SowingAPI
	solvency   SolvencyAPI
	maxInvalid int

	// locks serializes concurrent messages from the same user; messages from
	// different users proceed in parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMaxInvalid overrides the consecutive-invalid-input threshold.
func WithMaxInvalid(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxInvalid = n
		}
	}
}

// NewEngine creates a conversation engine backed by the given session store
// and query clients.
func NewEngine(sessions store.SessionStore, sowing SowingAPI, solvency SolvencyAPI, opts ...EngineOption) *Engine {
	e := &Engine{
		sessions:   sessions,
		sowing:     sowing,
		solvency:   solvency,
		maxInvalid: DefaultMaxInvalid,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleIncoming is the sole entry point. It looks up or lazily creates the
// user's session, interprets the message against the current step, and returns
// the response text ready for delivery.
func (e *Engine) HandleIncoming(ctx context.Context, userID, text string) string {
	lock := e.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	session, err := e.sessions.GetOrCreate(userID)
	if err != nil {
		slog.Error("Engine.HandleIncoming: session load failed", "error", err, "user", userID)
		return msgInternalIssue
	}

	reply := e.dispatch(ctx, session, text)

	if err := e.sessions.Save(session); err != nil {
		slog.Error("Engine.HandleIncoming: session save failed", "error", err, "user", userID)
	}
	slog.Debug("Engine.HandleIncoming: replied", "user", userID, "step", session.Step, "flow", session.Flow)
	return reply
}

func (e *Engine) lockFor(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[userID] = lock
	}
	return lock
}

func (e *Engine) dispatch(ctx context.Context, s *models.Session, text string) string {
	trimmed := strings.TrimSpace(text)
	normalized := strings.ToLower(trimmed)

	if isResetKeyword(normalized) {
		s.Reset()
		return msgMainMenu
	}

	switch s.Step {
	case models.StepMainMenu, "":
		return e.handleMainMenu(s, normalized)
	case models.StepSowingCollectCrop:
		return e.handleCrop(s, trimmed)
	case models.StepSowingCollectLocation:
		return e.handleSowingLocation(ctx, s, trimmed)
	case models.StepRecommendCollectLocation:
		return e.handleRecommendLocation(ctx, s, trimmed)
	case models.StepSolvencySelectArea:
		return e.handleAreaType(ctx, s, normalized)
	case models.StepSolvencySelectDistrict,
		models.StepSolvencySelectTaluka,
		models.StepSolvencySelectVillage,
		models.StepSolvencySelectSurvey:
		return e.handleListSelection(ctx, s, normalized)
	default:
		slog.Warn("Engine.dispatch: unknown step, resetting", "step", s.Step, "user", s.UserID)
		s.Reset()
		return msgMainMenu
	}
}

// invalid records an invalid input at the current step and either re-prompts
// or, past the threshold, resets to the main menu with an explanation.
func (e *Engine) invalid(s *models.Session, reprompt string) string {
	s.InvalidCount++
	if s.InvalidCount >= e.maxInvalid {
		slog.Info("Engine: invalid input threshold reached, resetting", "user", s.UserID, "step", s.Step)
		s.Reset()
		return msgTooManyInvalid + "\n\n" + msgMainMenu
	}
	return reprompt
}

func (e *Engine) handleMainMenu(s *models.Session, choice string) string {
	switch choice {
	case "":
		// Empty input with no active flow just shows the menu.
		return msgMainMenu
	case "1", "sowing":
		s.Flow = models.FlowSowing
		s.Step = models.StepSowingCollectCrop
		s.InvalidCount = 0
		return msgAskCrop
	case "2", "solvency":
		s.Flow = models.FlowSolvency
		s.Step = models.StepSolvencySelectArea
		s.InvalidCount = 0
		return msgAskAreaType
	case "3", "crops", "recommend":
		s.Flow = models.FlowRecommend
		s.Step = models.StepRecommendCollectLocation
		s.InvalidCount = 0
		return msgAskLocation
	default:
		return e.invalid(s, msgInvalidMenu+"\n\n"+msgMainMenu)
	}
}

func (e *Engine) handleCrop(s *models.Session, crop string) string {
	if crop == "" {
		return e.invalid(s, msgInvalidCrop)
	}
	s.Answers[models.AnswerCrop] = crop
	s.Step = models.StepSowingCollectLocation
	s.InvalidCount = 0
	return msgAskLocation
}

func (e *Engine) handleSowingLocation(ctx context.Context, s *models.Session, text string) string {
	lat, lon, err := parseCoordinates(text)
	if err != nil {
		slog.Debug("Engine: invalid coordinates", "error", err, "user", s.UserID)
		return e.invalid(s, msgInvalidLocation)
	}
	s.Answers[models.AnswerLatitude] = strconv.FormatFloat(lat, 'f', -1, 64)
	s.Answers[models.AnswerLongitude] = strconv.FormatFloat(lon, 'f', -1, 64)
	crop := s.Answers[models.AnswerCrop]

	// Terminal step: one call, then back to the menu whatever the outcome.
	window, err := e.sowing.BestSowingWindow(ctx, crop, lat, lon)
	s.Reset()
	if err != nil {
		return renderUnreachable()
	}
	return renderSowingWindow(crop, window)
}

func (e *Engine) handleRecommendLocation(ctx context.Context, s *models.Session, text string) string {
	lat, lon, err := parseCoordinates(text)
	if err != nil {
		slog.Debug("Engine: invalid coordinates", "error", err, "user", s.UserID)
		return e.invalid(s, msgInvalidLocation)
	}

	crops, err := e.solvency.TopCrops(ctx, lat, lon)
	s.Reset()
	if err != nil {
		return renderUnreachable()
	}
	return renderTopCrops(crops)
}

func (e *Engine) handleAreaType(ctx context.Context, s *models.Session, choice string) string {
	area, ok := parseAreaType(choice)
	if !ok {
		return e.invalid(s, msgInvalidArea+"\n\n"+msgAskAreaType)
	}
	s.Answers[models.AnswerArea] = area
	s.InvalidCount = 0

	options, err := e.solvency.Districts(ctx, area)
	return e.presentLevel(s, models.StepSolvencySelectDistrict, headerDistricts, "districts", options, err)
}

// presentLevel renders a numbered option list for a hierarchy level, rebuilding
// the choice map to match exactly what is rendered. Backend failure and empty
// result sets both abandon the flow, with distinct messages.
func (e *Engine) presentLevel(s *models.Session, step models.Step, header, level string, options []backend.ListOption, err error) string {
	if err != nil {
		s.Reset()
		return renderUnreachable()
	}
	if len(options) == 0 {
		slog.Info("Engine: empty option list, abandoning flow", "user", s.UserID, "level", level)
		s.Reset()
		return renderNoOptions(level)
	}

	s.ChoiceMap = make(map[int]string, len(options))
	var b strings.Builder
	b.WriteString(header)
	for i, opt := range options {
		s.ChoiceMap[i+1] = opt.Code
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt.Name)
	}
	b.WriteString("\n\n" + msgSelectNumber)
	s.ListPrompt = b.String()
	s.Step = step
	s.InvalidCount = 0
	return s.ListPrompt
}

func (e *Engine) handleListSelection(ctx context.Context, s *models.Session, choice string) string {
	idx, err := strconv.Atoi(choice)
	code, ok := s.ChoiceMap[idx]
	if err != nil || !ok {
		reprompt := msgInvalidSelection
		if s.ListPrompt != "" {
			reprompt += "\n\n" + s.ListPrompt
		}
		return e.invalid(s, reprompt)
	}

	// The choice map is consumed exactly once; the next list rebuilds it.
	s.ChoiceMap = nil
	s.ListPrompt = ""
	s.InvalidCount = 0
	area := s.Answers[models.AnswerArea]

	switch s.Step {
	case models.StepSolvencySelectDistrict:
		s.Answers[models.AnswerDistrictCode] = code
		options, err := e.solvency.Talukas(ctx, area, code)
		return e.presentLevel(s, models.StepSolvencySelectTaluka, headerTalukas, "talukas", options, err)

	case models.StepSolvencySelectTaluka:
		s.Answers[models.AnswerTalukaCode] = code
		options, err := e.solvency.Villages(ctx, area, s.Answers[models.AnswerDistrictCode], code)
		return e.presentLevel(s, models.StepSolvencySelectVillage, headerVillages, "villages", options, err)

	case models.StepSolvencySelectVillage:
		s.Answers[models.AnswerVillageCode] = code
		options, err := e.solvency.Surveys(ctx, area,
			s.Answers[models.AnswerDistrictCode], s.Answers[models.AnswerTalukaCode], code)
		return e.presentLevel(s, models.StepSolvencySelectSurvey, headerSurveys, "surveys", options, err)

	case models.StepSolvencySelectSurvey:
		s.Answers[models.AnswerSurveyNo] = code
		return e.finishSolvency(ctx, s)
	}

	// Unreachable by construction, but never leak a fault to the transport.
	s.Reset()
	return msgMainMenu
}

func (e *Engine) finishSolvency(ctx context.Context, s *models.Session) string {
	params := backend.BalanceParams{
		Area:         s.Answers[models.AnswerArea],
		DistrictCode: s.Answers[models.AnswerDistrictCode],
		TalukaCode:   s.Answers[models.AnswerTalukaCode],
		VillageCode:  s.Answers[models.AnswerVillageCode],
		SurveyNo:     s.Answers[models.AnswerSurveyNo],
	}
	surveyNo := params.SurveyNo

	// Terminal step: one call, then back to the menu whatever the outcome.
	balance, err := e.solvency.GroundwaterBalance(ctx, params)
	s.Reset()
	if err != nil {
		return renderUnreachable()
	}
	return renderGroundwaterBalance(surveyNo, balance)
}
