// Package campaign holds the wizard state machine that walks a campaign from
// persona selection to a compliance-gated send. Each Pipeline is one user
// session; it exclusively owns the campaign intent, the generated message,
// the live working text, and the compliance verdict.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/padalahq/padala/internal/classify"
	"github.com/padalahq/padala/internal/generate"
	"github.com/padalahq/padala/internal/sms"
)

// Step is a wizard position. Exactly one is active per pipeline.
type Step string

const (
	StepSelectPersona      Step = "select_persona"
	StepSelectCampaignType Step = "select_campaign_type"
	StepComposeBrief       Step = "compose_brief"
	StepReviewAndSend      Step = "review_and_send"
)

var (
	// ErrInvalidStep means the operation is not available at the current
	// wizard step.
	ErrInvalidStep = errors.New("operation not available at this step")

	// ErrUnknownOption means a persona or campaign type ID is not in the
	// catalog.
	ErrUnknownOption = errors.New("unknown option")

	// ErrBusy means a generate or send is already in flight for this session.
	ErrBusy = errors.New("operation already in progress")

	// ErrSendUnavailable means the send gate is closed; the action is not
	// invokable in this state.
	ErrSendUnavailable = errors.New("send is not available in the current state")
)

// Generator produces SMS copy for a persona and brief.
type Generator interface {
	Generate(ctx context.Context, persona, prompt string, meta generate.Meta) (generate.Output, error)
}

// Classifier produces a compliance verdict for message text.
type Classifier interface {
	Classify(ctx context.Context, message string) (classify.Result, error)
}

// Sender delivers the final message.
type Sender interface {
	Send(ctx context.Context, recipient, message string) ([]sms.Message, error)
}

// Deps are the collaborators and tunables shared by all pipelines.
type Deps struct {
	Generator  Generator
	Classifier Classifier
	Sender     Sender
	Logger     *slog.Logger

	// Debounce is the quiet period after an edit before re-classification.
	Debounce time.Duration
	// BannerLifetime is how long a wizard error stays visible.
	BannerLifetime time.Duration
}

// Pipeline is one campaign wizard session.
type Pipeline struct {
	mu   sync.Mutex
	id   string
	deps Deps

	createdAt time.Time
	touchedAt time.Time

	step         Step
	persona      string
	campaignType string
	brief        string
	recipient    string

	// original is the generated baseline; message is the live working copy.
	original        string
	originalVerdict classify.Verdict

	message        string
	verdict        classify.Verdict
	lastClassified string
	// provisional is true whenever message differs from lastClassified, so a
	// stale "safe to send" verdict can never be shown for edited text.
	provisional bool

	isGenerating    bool
	isSending       bool
	isReclassifying bool

	lastError string
	errorSeq  uint64

	// reclassSeq is the request generation counter: a landed classification
	// is applied only if its captured sequence still matches.
	reclassSeq    uint64
	debounceTimer *time.Timer
}

func newPipeline(id string, deps Deps) *Pipeline {
	now := time.Now()
	return &Pipeline{
		id:        id,
		deps:      deps,
		createdAt: now,
		touchedAt: now,
		step:      StepSelectPersona,
	}
}

// ID returns the session identifier.
func (p *Pipeline) ID() string {
	return p.id
}

// Snapshot is the read-only view the HTTP layer renders.
type Snapshot struct {
	CampaignID      string   `json:"campaign_id"`
	Step            Step     `json:"step"`
	Persona         string   `json:"persona,omitempty"`
	CampaignType    string   `json:"campaign_type,omitempty"`
	Brief           string   `json:"brief,omitempty"`
	Message         string   `json:"message,omitempty"`
	OriginalMessage string   `json:"original_message,omitempty"`
	Classification  *Verdict `json:"classification,omitempty"`
	Recipient       string   `json:"recipient,omitempty"`
	CanSend         bool     `json:"can_send"`
	IsGenerating    bool     `json:"is_generating"`
	IsSending       bool     `json:"is_sending"`
	IsReclassifying bool     `json:"is_reclassifying"`
	LastError       string   `json:"last_error,omitempty"`
}

// Verdict is the displayed compliance state. AllowSend is forced to false
// while the verdict is provisional.
type Verdict struct {
	Category    string `json:"category"`
	AllowSend   bool   `json:"allow_send"`
	Provisional bool   `json:"provisional"`
}

// Snapshot returns the current state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) snapshotLocked() Snapshot {
	snap := Snapshot{
		CampaignID:      p.id,
		Step:            p.step,
		Persona:         p.persona,
		CampaignType:    p.campaignType,
		Brief:           p.brief,
		Message:         p.message,
		OriginalMessage: p.original,
		Recipient:       p.recipient,
		CanSend:         p.canSendLocked(),
		IsGenerating:    p.isGenerating,
		IsSending:       p.isSending,
		IsReclassifying: p.isReclassifying,
		LastError:       p.lastError,
	}
	if p.step == StepReviewAndSend {
		snap.Classification = &Verdict{
			Category:    p.verdict.Category,
			AllowSend:   p.allowSendLocked(),
			Provisional: p.provisional,
		}
	}
	return snap
}

func (p *Pipeline) allowSendLocked() bool {
	return !p.provisional && p.verdict.AllowSend
}

func (p *Pipeline) canSendLocked() bool {
	return p.step == StepReviewAndSend &&
		!p.isGenerating && !p.isSending && !p.isReclassifying &&
		strings.TrimSpace(p.message) != "" &&
		len(p.message) <= generate.MaxSMSLength &&
		strings.TrimSpace(p.recipient) != "" &&
		p.allowSendLocked()
}

// SelectPersona records the step-1 choice and advances the wizard.
func (p *Pipeline) SelectPersona(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touchLocked()

	if p.step != StepSelectPersona {
		return ErrInvalidStep
	}
	if !ValidPersona(id) {
		return fmt.Errorf("%w: persona %q", ErrUnknownOption, id)
	}
	p.persona = id
	p.step = StepSelectCampaignType
	return nil
}

// SelectCampaignType records the step-2 choice and advances the wizard.
func (p *Pipeline) SelectCampaignType(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touchLocked()

	if p.step != StepSelectCampaignType {
		return ErrInvalidStep
	}
	if !ValidCampaignType(id) {
		return fmt.Errorf("%w: campaign type %q", ErrUnknownOption, id)
	}
	p.campaignType = id
	p.step = StepComposeBrief
	return nil
}

// Back steps the wizard backwards. Leaving review discards the generated
// message, the working copy, and any pending re-classification.
func (p *Pipeline) Back() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touchLocked()

	switch p.step {
	case StepSelectCampaignType:
		p.step = StepSelectPersona
	case StepComposeBrief:
		p.step = StepSelectCampaignType
	case StepReviewAndSend:
		p.discardReviewStateLocked()
		p.step = StepComposeBrief
	default:
		return ErrInvalidStep
	}
	return nil
}

func (p *Pipeline) discardReviewStateLocked() {
	p.cancelReclassifyLocked()
	p.original = ""
	p.originalVerdict = classify.Verdict{}
	p.message = ""
	p.verdict = classify.Verdict{}
	p.lastClassified = ""
	p.provisional = false
	p.recipient = ""
	p.isReclassifying = false
}

// Generate produces copy for the brief and classifies it. The two calls are
// strictly sequential; review is entered only if both succeed. On failure the
// wizard stays at the brief step with a user-facing banner.
func (p *Pipeline) Generate(ctx context.Context, brief string, meta generate.Meta) error {
	p.mu.Lock()
	p.touchLocked()
	if p.step != StepComposeBrief {
		p.mu.Unlock()
		return ErrInvalidStep
	}
	if p.isGenerating {
		p.mu.Unlock()
		return ErrBusy
	}
	if strings.TrimSpace(brief) == "" {
		p.mu.Unlock()
		return generate.ErrMissingInput
	}
	p.brief = brief
	p.isGenerating = true
	p.lastError = ""
	p.errorSeq++
	persona := p.persona
	p.mu.Unlock()

	output, err := p.deps.Generator.Generate(ctx, persona, brief, meta)
	if err != nil {
		p.failGeneration(bannerForGenerateError(err))
		return err
	}

	result, err := p.deps.Classifier.Classify(ctx, output.Text)
	if err != nil {
		p.failGeneration("Failed to verify message compliance. Please try again.")
		return err
	}

	verdict := result.Normalize()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.isGenerating = false
	p.original = output.Text
	p.originalVerdict = verdict
	p.message = output.Text
	p.verdict = verdict
	p.lastClassified = output.Text
	p.provisional = false
	p.step = StepReviewAndSend
	return nil
}

func (p *Pipeline) failGeneration(banner string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isGenerating = false
	p.setErrorLocked(banner)
}

// bannerForGenerateError maps a generation failure to user-facing copy, with
// category-specific messages for blocked content.
func bannerForGenerateError(err error) string {
	var blocked *generate.BlockedError
	if errors.As(err, &blocked) {
		category := strings.ToLower(blocked.Category)
		switch {
		case strings.Contains(category, "adult"):
			return "Adult content is not allowed in SMS campaigns."
		case strings.Contains(category, "gambling"):
			return "Gambling content is not allowed in SMS campaigns."
		case strings.Contains(category, "political"):
			return "Political campaign content is not allowed."
		case strings.Contains(category, "fraud"):
			return "This content appears to be fraudulent or misleading."
		case strings.Contains(category, "illegal"):
			return "Illegal content is not allowed in SMS campaigns."
		default:
			return "Your content violates our policy guidelines."
		}
	}
	var length *generate.LengthError
	if errors.As(err, &length) {
		return fmt.Sprintf("Generated message exceeds %d characters. Please try a shorter brief.", generate.MaxSMSLength)
	}
	if errors.Is(err, generate.ErrMissingInput) {
		return "Persona and brief are required."
	}
	return "Failed to generate SMS. Please try again."
}

// EditMessage updates the working copy during review. The instant the text
// differs from the last-classified text the verdict turns provisional, and a
// re-classification is scheduled after the quiet period; a newer edit cancels
// and replaces any pending one.
func (p *Pipeline) EditMessage(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touchLocked()

	if p.step != StepReviewAndSend {
		return ErrInvalidStep
	}
	p.clearErrorLocked()

	if text == p.message {
		return nil
	}
	p.message = text

	if text == p.lastClassified {
		// Edited back to already-classified text; the landed verdict is
		// valid again and no request is needed.
		p.cancelReclassifyLocked()
		p.provisional = false
		p.isReclassifying = false
		return nil
	}

	p.provisional = true
	if strings.TrimSpace(text) == "" {
		// Nothing to classify; the empty message is unsendable anyway.
		p.cancelReclassifyLocked()
		p.isReclassifying = false
		return nil
	}

	p.scheduleReclassifyLocked(text)
	return nil
}

// ResetMessage restores the generated baseline and its verdict, discarding
// any pending re-classification.
func (p *Pipeline) ResetMessage() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touchLocked()

	if p.step != StepReviewAndSend || p.original == "" {
		return ErrInvalidStep
	}
	p.clearErrorLocked()
	p.cancelReclassifyLocked()
	p.message = p.original
	p.verdict = p.originalVerdict
	p.lastClassified = p.original
	p.provisional = false
	p.isReclassifying = false
	return nil
}

// SetRecipient records the destination number. Validation happens at send
// time in the delivery client.
func (p *Pipeline) SetRecipient(number string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touchLocked()

	if p.step != StepReviewAndSend {
		return ErrInvalidStep
	}
	p.clearErrorLocked()
	p.recipient = strings.TrimSpace(number)
	return nil
}

// Send dispatches the working copy if and only if the send gate is open.
func (p *Pipeline) Send(ctx context.Context) ([]sms.Message, error) {
	p.mu.Lock()
	p.touchLocked()
	if !p.canSendLocked() {
		p.mu.Unlock()
		return nil, ErrSendUnavailable
	}
	p.isSending = true
	recipient := p.recipient
	message := p.message
	p.mu.Unlock()

	receipts, err := p.deps.Sender.Send(ctx, recipient, message)

	p.mu.Lock()
	p.isSending = false
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// --- debounced re-classification ---

func (p *Pipeline) scheduleReclassifyLocked(text string) {
	p.cancelReclassifyLocked()
	p.reclassSeq++
	seq := p.reclassSeq
	p.isReclassifying = true
	p.debounceTimer = time.AfterFunc(p.deps.Debounce, func() {
		p.reclassify(seq, text)
	})
}

func (p *Pipeline) cancelReclassifyLocked() {
	p.reclassSeq++
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
		p.debounceTimer = nil
	}
}

// reclassify runs after the quiet period. The sequence check runs both before
// the network call and when the result lands: an in-flight result for
// superseded text is dropped unconditionally.
func (p *Pipeline) reclassify(seq uint64, text string) {
	p.mu.Lock()
	if seq != p.reclassSeq {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result, err := p.deps.Classifier.Classify(ctx, text)

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.reclassSeq {
		// A newer edit was scheduled while this call was in flight.
		return
	}
	p.isReclassifying = false
	if err != nil {
		// Verdict stays provisional, keeping the send gate closed.
		if p.deps.Logger != nil {
			p.deps.Logger.Error("Re-classification failed", "campaign_id", p.id, "error", err.Error())
		}
		return
	}
	p.verdict = result.Normalize()
	p.lastClassified = text
	p.provisional = false
}

// --- error banner ---

func (p *Pipeline) setErrorLocked(message string) {
	p.lastError = message
	p.errorSeq++
	seq := p.errorSeq
	lifetime := p.deps.BannerLifetime
	if lifetime <= 0 {
		return
	}
	time.AfterFunc(lifetime, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.errorSeq == seq {
			p.lastError = ""
		}
	})
}

func (p *Pipeline) clearErrorLocked() {
	p.lastError = ""
	p.errorSeq++
}

func (p *Pipeline) touchLocked() {
	p.touchedAt = time.Now()
}

func (p *Pipeline) expired(ttl time.Duration, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.touchedAt) > ttl
}

// Close stops any pending timers. Called when the session is evicted.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelReclassifyLocked()
	p.isReclassifying = false
}
