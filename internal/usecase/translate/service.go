package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"content-gateway/internal/domain"
	"content-gateway/internal/infra/metrics"
)

// TTL — время жизни закэшированного перевода.
const TTL = 7 * 24 * time.Hour

const keyPrefix = "translation:"

// Service кэширует переводы строк. Сбои перевода не возвращаются
// вызывающему: вместо перевода отдаётся исходный текст.
type Service struct {
	translator domain.Translator
	store      domain.KVStore
	baseLang   string
	now        func() time.Time
	log        zerolog.Logger
}

// Option настраивает сервис.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.log = logger }
}

// NewService создаёт сервис. baseLang — язык исходного контента,
// перевод на него не выполняется.
func NewService(translator domain.Translator, store domain.KVStore, baseLang string, opts ...Option) *Service {
	s := &Service{
		translator: translator,
		store:      store,
		baseLang:   baseLang,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key возвращает ключ кэша для пары (target, text).
func Key(target, text string) string {
	return keyPrefix + target + ":" + strconv.FormatUint(xxhash.Sum64String(text), 36)
}

// Translate возвращает перевод text на target. Пустой source означает автоопределение.
func (s *Service) Translate(ctx context.Context, text, target, source string) string {
	if s.passthrough(text, target, source) {
		return text
	}
	if cached, ok := s.lookup(ctx, text, target); ok {
		return cached
	}
	out, err := s.translator.Translate(ctx, []string{text}, target, source)
	if err == nil && len(out) != 1 {
		err = fmt.Errorf("translate: expected 1 translation, got %d", len(out))
	}
	if err != nil {
		s.degraded("translate", target, err)
		return text
	}
	translated := decodeEntities(out[0])
	s.save(ctx, text, target, translated)
	return translated
}

// TranslateMany переводит texts на target с сохранением порядка. Строки
// из кэша не отправляются; остальные уходят одним запросом без повторов.
func (s *Service) TranslateMany(ctx context.Context, texts []string, target string) []string {
	result := make([]string, len(texts))
	copy(result, texts)

	var pending []string
	positions := make(map[string][]int)
	for i, text := range texts {
		if s.passthrough(text, target, "") {
			continue
		}
		if cached, ok := s.lookup(ctx, text, target); ok {
			result[i] = cached
			continue
		}
		if _, queued := positions[text]; !queued {
			pending = append(pending, text)
		}
		positions[text] = append(positions[text], i)
	}
	if len(pending) == 0 {
		return result
	}

	out, err := s.translator.Translate(ctx, pending, target, "")
	if err == nil && len(out) != len(pending) {
		err = fmt.Errorf("translate: expected %d translations, got %d", len(pending), len(out))
	}
	if err != nil {
		s.degraded("translate_many", target, err)
		return result
	}
	for i, text := range pending {
		translated := decodeEntities(out[i])
		s.save(ctx, text, target, translated)
		for _, pos := range positions[text] {
			result[pos] = translated
		}
	}
	return result
}

// ClearCache удаляет все закэшированные переводы и возвращает их число.
func (s *Service) ClearCache(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("translate: list keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.store.DeleteMany(ctx, keys); err != nil {
		return 0, fmt.Errorf("translate: delete keys: %w", err)
	}
	return len(keys), nil
}

func (s *Service) passthrough(text, target, source string) bool {
	if strings.TrimSpace(text) == "" || target == "" {
		return true
	}
	return target == s.baseLang || (source != "" && source == target)
}

// lookup возвращает свежий перевод. Просроченная запись удаляется;
// запись, сохранённая для другого исходного текста, считается промахом.
func (s *Service) lookup(ctx context.Context, text, target string) (string, bool) {
	key := Key(target, text)
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("translate: чтение кэша")
		return "", false
	}
	if !ok {
		metrics.ObserveCacheLookup("translation", "miss")
		return "", false
	}
	var entry domain.TranslationEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		metrics.ObserveCacheLookup("translation", "corrupt")
		return "", false
	}
	if s.now().Sub(time.UnixMilli(entry.Timestamp)) >= TTL {
		metrics.ObserveCacheLookup("translation", "expired")
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("translate: удаление просроченной записи")
		}
		return "", false
	}
	if entry.Source != "" && entry.Source != text {
		metrics.ObserveCacheLookup("translation", "collision")
		return "", false
	}
	metrics.ObserveCacheLookup("translation", "hit")
	return entry.Text, true
}

func (s *Service) save(ctx context.Context, text, target, translated string) {
	key := Key(target, text)
	raw, err := json.Marshal(domain.TranslationEntry{Text: translated, Source: text, Timestamp: s.now().UnixMilli()})
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("translate: сериализация записи")
		return
	}
	if err := s.store.Set(ctx, key, string(raw)); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("translate: запись в кэш")
	}
}

func (s *Service) degraded(op, target string, err error) {
	s.log.Warn().Err(err).Str("component", "translate").Str("op", op).Str("target", target).Msg("translate: перевод недоступен, отдаём исходный текст")
	metrics.IncDegraded("translate", op)
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&#039;", "'",
	"&nbsp;", " ",
)

// decodeEntities раскрывает сущности, которые сервис перевода оставляет в ответе.
func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}
