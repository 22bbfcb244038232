// Package advisor runs the advice pipeline: intent resolution, context
// compression, safety escalation, routing, caching, budgeting, generation and
// output sanitization.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"healthadvisor/backend/internal/budget"
	"healthadvisor/backend/internal/cache"
	"healthadvisor/backend/internal/health"
	"healthadvisor/backend/internal/intent"
	"healthadvisor/backend/internal/llm"
	"healthadvisor/backend/internal/persona"
	"healthadvisor/backend/internal/qc"
	"healthadvisor/backend/internal/routing"
	"healthadvisor/backend/internal/rules"
	"healthadvisor/backend/internal/safety"
)

const (
	tracerName             = "healthadvisor/advisor"
	defaultProviderTimeout = 20 * time.Second
)

// Deps are the pipeline collaborators. Nil fields fall back to built-in
// defaults; a nil Cache or Budget disables that stage.
type Deps struct {
	Compressor      *health.Compressor
	Guardrail       *safety.Guardrail
	Router          *routing.Router
	Cache           *cache.Cache
	Budget          *budget.Guard
	Provider        llm.Provider
	Profiles        persona.Store
	Sanitizer       *qc.Sanitizer
	DemoMode        bool
	ProviderTimeout time.Duration
	NewID           func() string
}

type Pipeline struct {
	compressor      *health.Compressor
	guardrail       *safety.Guardrail
	router          *routing.Router
	cache           *cache.Cache
	budget          *budget.Guard
	provider        llm.Provider
	profiles        persona.Store
	sanitizer       *qc.Sanitizer
	demoMode        bool
	providerTimeout time.Duration
	newID           func() string
	tracer          trace.Tracer
}

func New(deps Deps) *Pipeline {
	p := &Pipeline{
		compressor:      deps.Compressor,
		guardrail:       deps.Guardrail,
		router:          deps.Router,
		cache:           deps.Cache,
		budget:          deps.Budget,
		provider:        deps.Provider,
		profiles:        deps.Profiles,
		sanitizer:       deps.Sanitizer,
		demoMode:        deps.DemoMode,
		providerTimeout: deps.ProviderTimeout,
		newID:           deps.NewID,
		tracer:          otel.Tracer(tracerName),
	}
	if p.guardrail == nil {
		p.guardrail = safety.NewDefault()
	}
	if p.router == nil {
		p.router = routing.NewRouter()
	}
	if p.provider == nil {
		p.provider = llm.Unconfigured{}
	}
	if p.profiles == nil {
		p.profiles = persona.NewMemoryStore()
	}
	if p.sanitizer == nil {
		p.sanitizer = qc.New(qc.DefaultTerms, qc.MaxRunes)
	}
	if p.providerTimeout <= 0 {
		p.providerTimeout = defaultProviderTimeout
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// Chat answers one chat request. The only error it returns is a
// *ValidationError; every collaborator failure degrades to a usable reply.
func (p *Pipeline) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ctx, span := p.tracer.Start(ctx, "advisor.chat")
	defer span.End()

	if err := req.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ChatResponse{}, err
	}
	userID := strings.TrimSpace(req.UserID)
	idemKey := strings.TrimSpace(req.IdempotencyKey)

	var replay ChatResponse
	if p.cache.LookupIdempotent(ctx, userID, idemKey, &replay) {
		span.SetAttributes(attribute.Bool("advisor.idempotent_replay", true))
		return replay, nil
	}

	tag := intent.Resolve(req.Intent, req.Message)
	span.SetAttributes(attribute.String("advisor.intent", string(tag)))
	compressed := p.compress(ctx, userID)

	if verdict := p.guardrail.Evaluate(req.Message, compressed); verdict.Escalate {
		log.Printf("safety escalation user_id=%s reason=%s kind=%s source=%s", userID, verdict.Reason, verdict.Kind, verdict.Source)
		span.SetAttributes(attribute.String("advisor.safety_reason", verdict.Reason))
		resp := ChatResponse{
			RequestID:      p.newID(),
			Intent:         intent.SafetyEscalation,
			Model:          ModelGuardrail,
			Output:         p.sanitize(verdict.Text),
			Safety:         SafetyHigh,
			IdempotencyKey: idemKey,
		}
		p.cache.StoreIdempotent(ctx, userID, idemKey, resp)
		return resp, nil
	}

	route := p.router.Route(tag)
	span.SetAttributes(attribute.String("advisor.model", route.Model))

	var prefs persona.Prefs
	if tag == intent.MealTip {
		prefs = p.Prefs(ctx, userID)
	}
	contextText := contextBlock(compressed)
	contentKey := cache.ContentKey(userID, string(tag), contextFingerprint(compressed, tag, prefs), req.Message)
	ttl := route.CacheTTL.Duration()

	resp := ChatResponse{
		RequestID:      p.newID(),
		Intent:         tag,
		Safety:         SafetyLow,
		IdempotencyKey: idemKey,
	}

	var hit cachedReply
	if ttl > 0 && p.cache.Lookup(ctx, contentKey, &hit) {
		span.SetAttributes(attribute.Bool("advisor.cache_hit", true))
		resp.Model = hit.Model
		resp.Output = hit.Output
		resp.Cached = true
		p.cache.StoreIdempotent(ctx, userID, idemKey, resp)
		return resp, nil
	}

	systemPrompt := buildSystemPrompt(tag)
	if p.budget != nil && route.Priority == routing.PriorityLow {
		status := p.budget.Check(ctx, userID, budget.Estimate(systemPrompt, contextText, req.Message))
		resp.Budget = &status
		if status.Exceeded {
			log.Printf("daily budget exceeded user_id=%s used=%d limit=%d intent=%s", userID, status.Used, status.Limit, tag)
			span.SetAttributes(attribute.Bool("advisor.budget_exceeded", true))
			resp.Model = ModelRules
			resp.Output = p.sanitize(rules.Fallback(tag))
			p.cache.StoreIdempotent(ctx, userID, idemKey, resp)
			return resp, nil
		}
	}

	reply := p.generate(ctx, userID, tag, route, compressed, prefs, systemPrompt, contextText, req.Message)
	reply.Output = p.sanitize(reply.Output)
	resp.Model = reply.Model
	resp.Tokens = reply.Tokens
	resp.Output = reply.Output

	if p.budget != nil && reply.Tokens > 0 {
		status := p.budget.Record(ctx, userID, int64(reply.Tokens))
		resp.Budget = &status
	}

	// A cancelled request leaves no cache entries behind.
	if ctx.Err() == nil {
		p.cache.Store(ctx, contentKey, reply, ttl)
		p.cache.StoreIdempotent(ctx, userID, idemKey, resp)
	}
	return resp, nil
}

func (p *Pipeline) generate(
	ctx context.Context,
	userID string,
	tag intent.Intent,
	route routing.Route,
	compressed health.Context,
	prefs persona.Prefs,
	systemPrompt string,
	contextText string,
	message string,
) cachedReply {
	ctx, span := p.tracer.Start(ctx, "advisor.generate")
	defer span.End()

	if tag == intent.MealTip {
		if compressed.LastMeal == nil {
			return cachedReply{Model: ModelRules, Output: rules.Fallback(tag)}
		}
		tip := rules.MealTip(*compressed.LastMeal, p.compressor.Features(ctx, userID))
		persona.Transform(tip, prefs)
		return cachedReply{Model: ModelRules, Output: tip.Format()}
	}
	if p.demoMode {
		return cachedReply{Model: ModelDemo, Output: rules.Fallback(tag)}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.providerTimeout)
	defer cancel()
	result, err := p.provider.Complete(callCtx, llm.Request{
		Model:       route.Model,
		System:      systemPrompt,
		Prompt:      buildUserPrompt(contextText, message),
		Temperature: route.Temperature,
		MaxTokens:   route.MaxTokens,
	})
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			log.Printf("llm completion failed user_id=%s intent=%s model=%s err=%v", userID, tag, route.Model, err)
		}
		span.RecordError(err)
		return cachedReply{Model: ModelFallback, Output: rules.Fallback(tag)}
	}
	return cachedReply{Model: result.Model, Tokens: result.Usage.TotalTokens, Output: result.Text}
}

// MealFeedback builds a persona-adapted tip for a logged meal.
func (p *Pipeline) MealFeedback(ctx context.Context, req MealFeedbackRequest) (MealFeedbackResponse, error) {
	ctx, span := p.tracer.Start(ctx, "advisor.meal_feedback")
	defer span.End()

	if err := req.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return MealFeedbackResponse{}, err
	}
	userID := strings.TrimSpace(req.UserID)

	tip := rules.MealTip(req.Meal, p.compressor.Features(ctx, userID))
	persona.Transform(tip, p.Prefs(ctx, userID))
	return MealFeedbackResponse{
		RequestID: p.newID(),
		Output:    p.sanitize(tip.Format()),
		Tip:       *tip,
		Safety:    SafetyLow,
	}, nil
}

// Prefs returns the user's normalized persona preferences, or the defaults if
// the profile store fails.
func (p *Pipeline) Prefs(ctx context.Context, userID string) persona.Prefs {
	prefs, err := p.profiles.PersonaPrefs(ctx, userID)
	if err != nil {
		log.Printf("persona prefs read failed user_id=%s err=%v", userID, err)
		return persona.Defaults()
	}
	return persona.Normalize(prefs)
}

func (p *Pipeline) SavePrefs(ctx context.Context, userID string, prefs persona.Prefs) (persona.Prefs, error) {
	if strings.TrimSpace(userID) == "" {
		return persona.Prefs{}, &ValidationError{Field: "user_id", Err: ErrUserRequired}
	}
	normalized := persona.Normalize(prefs)
	if err := p.profiles.SavePersonaPrefs(ctx, userID, normalized); err != nil {
		return persona.Prefs{}, err
	}
	return normalized, nil
}

// Sanitize runs text through the output checks every reply passes.
func (p *Pipeline) Sanitize(text string) qc.Result {
	return p.sanitizer.Sanitize(text)
}

func (p *Pipeline) sanitize(text string) string {
	result := p.sanitizer.Sanitize(text)
	if len(result.Found) > 0 {
		log.Printf("qc replaced forbidden phrases count=%d phrases=%q", len(result.Found), result.Found)
	}
	return result.Text
}

func (p *Pipeline) compress(ctx context.Context, userID string) health.Context {
	ctx, span := p.tracer.Start(ctx, "advisor.compress")
	defer span.End()
	compressed := p.compressor.Compress(ctx, userID)
	span.SetAttributes(attribute.Bool("advisor.context_empty", compressed.Empty()))
	return compressed
}

// contextFingerprint is the context part of the content cache key. Meal tips
// are persona-shaped, so their preferences are part of the context.
func contextFingerprint(compressed health.Context, tag intent.Intent, prefs persona.Prefs) string {
	encoded, err := json.Marshal(compressed)
	if err != nil {
		encoded = nil
	}
	if tag != intent.MealTip {
		return string(encoded)
	}
	encodedPrefs, _ := json.Marshal(prefs)
	return string(encoded) + "|" + string(encodedPrefs)
}
