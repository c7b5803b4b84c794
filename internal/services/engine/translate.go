package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"typeduet/internal/middleware"
	"typeduet/internal/models"
	"typeduet/internal/repository"
	"typeduet/internal/romanize"

	"go.opentelemetry.io/otel/attribute"
)

// translationFailedMarker is appended to the finalized log when the
// translator cannot produce a result. Failure never blocks the turn
// protocol: the watermark still advances so the sentence is not retried.
const translationFailedMarker = "(translation failed)"

var (
	sentenceTerminators = map[rune]bool{'.': true, '!': true, '?': true, '~': true}
	quotedSpanRe        = regexp.MustCompile(`'([^']+)'`)
)

// quotedSpan records one protected span: the placeholder that replaced it,
// the original quoted text and the transliteration used if translation
// fails.
type quotedSpan struct {
	key            string
	original       string
	transliterated string
}

// Pipeline turns completed sentences of the active buffer into finalized
// source/translation pairs. The external translate call runs with the room
// lock released, so buffer updates keep flowing while it is in flight; the
// in-flight guard keeps a second invocation out.
type Pipeline struct {
	store      RoomStore
	cache      *RoomCache
	emit       Emitter
	translator Translator
}

func NewPipeline(store RoomStore, cache *RoomCache, emit Emitter, translator Translator) *Pipeline {
	return &Pipeline{
		store:      store,
		cache:      cache,
		emit:       emit,
		translator: translator,
	}
}

func (p *Pipeline) commit(ctx context.Context, room *models.Room) {
	if err := p.store.Replace(ctx, room.ID, room); err != nil {
		log.Printf("room %s: durable commit failed: %v", room.ID, err)
	}
}

// MaybeTranslate inspects the active buffer and, when a completed sentence is
// pending, runs one translation round. It reports whether it broadcast room
// state, so callers know the update is already on the wire.
func (p *Pipeline) MaybeTranslate(ctx context.Context, roomID string) bool {
	entry := p.cache.lockRoom(roomID)
	if entry == nil {
		return false
	}

	room := entry.room
	if room.Kind != models.KindTranslated || room.TranslationInFlight {
		entry.mu.Unlock()
		return false
	}

	trimmed := strings.TrimSpace(room.ActiveBuffer)
	if !endsInTerminator(trimmed) || trimmed == room.LastProcessedPrefix {
		entry.mu.Unlock()
		return false
	}
	delta := deltaAfterPrefix(trimmed, room.LastProcessedPrefix)
	if delta == "" {
		entry.mu.Unlock()
		return false
	}

	// Observers see the pending indicator before the slow call starts.
	room.TranslationInFlight = true
	p.commit(ctx, room)
	p.emit.EmitToRoom(roomID, models.EventRoomStateUpdated, room.Snapshot())
	entry.mu.Unlock()

	protected, spans := protectQuotedSpans(delta)

	ctx, span := middleware.StartSpan(ctx, "Pipeline.Translate",
		attribute.String("room.id", roomID),
		attribute.Int("delta.length", len(delta)),
	)
	translated, terr := p.translator.Translate(ctx, protected, "KO", "EN")
	if terr != nil {
		middleware.AddSpanError(ctx, terr)
	}
	span.End()

	entry = p.cache.lockRoom(roomID)
	if entry == nil {
		// Everyone left while the call was out. The pending commit already
		// persisted the in-flight guard, so the result and the cleared guard
		// must still reach the durable copy.
		p.finishEvicted(ctx, roomID, trimmed, delta, protected, spans, translated, terr)
		return false
	}
	defer entry.mu.Unlock()

	applyTranslationResult(entry.room, trimmed, delta, protected, spans, translated, terr)
	p.commit(ctx, entry.room)
	p.emit.EmitToRoom(roomID, models.EventRoomStateUpdated, entry.room.Snapshot())
	return true
}

// applyTranslationResult appends the finalized source/translation pair,
// advances the processed watermark and clears the in-flight guard. Shared by
// the hot-room and evicted-room completion paths.
func applyTranslationResult(room *models.Room, trimmed, delta, protected string, spans []quotedSpan, translated string, terr error) {
	if terr == nil {
		room.FinalizedLog = append(room.FinalizedLog, delta+"\n"+restoreOriginal(translated, spans))
	} else {
		log.Printf("room %s: translation failed: %v", room.ID, terr)
		fallback := restoreTransliterated(protected, spans)
		room.FinalizedLog = append(room.FinalizedLog, fallback+"\n"+translationFailedMarker)
	}
	room.LastProcessedPrefix = trimmed
	room.TranslationInFlight = false
}

// finishEvicted completes a translation whose room went cold mid-call: the
// durable copy is reloaded, finished and committed so a re-entered room picks
// up the transcript and never stays marked in flight. A deleted room is left
// alone.
func (p *Pipeline) finishEvicted(ctx context.Context, roomID, trimmed, delta, protected string, spans []quotedSpan, translated string, terr error) {
	room, err := p.store.Load(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("room %s: reload after translation failed: %v", roomID, err)
		return
	}

	applyTranslationResult(room, trimmed, delta, protected, spans, translated, terr)
	p.commit(ctx, room)
}

func endsInTerminator(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	return sentenceTerminators[runes[len(runes)-1]]
}

// deltaAfterPrefix strips the already-processed prefix from the trimmed
// buffer and trims the remainder.
func deltaAfterPrefix(trimmed, prefix string) string {
	if len(prefix) >= len(trimmed) {
		return ""
	}
	return strings.TrimSpace(trimmed[len(prefix):])
}

// protectQuotedSpans replaces each single-quoted span with a unique
// placeholder so the translator cannot mangle proper nouns or dialogue.
func protectQuotedSpans(text string) (string, []quotedSpan) {
	var spans []quotedSpan
	protected := quotedSpanRe.ReplaceAllStringFunc(text, func(match string) string {
		content := match[1 : len(match)-1]
		span := quotedSpan{
			key:            fmt.Sprintf("__PLACEHOLDER_%d__", len(spans)),
			original:       match,
			transliterated: romanize.Convert(content),
		}
		spans = append(spans, span)
		return span.key
	})
	return protected, spans
}

// restoreOriginal substitutes placeholders with the original quoted content.
// Matching is case-insensitive because translators routinely re-case the
// placeholder tokens.
func restoreOriginal(text string, spans []quotedSpan) string {
	for _, span := range spans {
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(span.key))
		text = re.ReplaceAllLiteralString(text, span.original)
	}
	return text
}

// restoreTransliterated substitutes placeholders with the romanized fallback
// content, used when the translation itself failed.
func restoreTransliterated(text string, spans []quotedSpan) string {
	for _, span := range spans {
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(span.key))
		text = re.ReplaceAllLiteralString(text, span.transliterated)
	}
	return text
}
