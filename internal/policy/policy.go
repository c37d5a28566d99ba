// Package policy enforces the password acceptance rules: complexity,
// dictionary membership, and reuse history.
package policy

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/comunication-ltd/credcore/internal/config"
)

// ComplexityResult reports every rule a candidate password violated.
type ComplexityResult struct {
	OK      bool
	Reasons []string
}

// CheckResult is the outcome of a single-rule check.
type CheckResult struct {
	OK     bool
	Reason string
}

// Engine applies the configured password policy. Construct once with the
// process SecurityConfig; the dictionary is loaded a single time.
type Engine struct {
	cfg    config.SecurityConfig
	dict   map[string]struct{}
	logger *slog.Logger
}

// NewEngine builds a policy engine, loading the banned-word dictionary from
// cfg.DictionaryPath. A missing or unreadable dictionary fails OPEN: the
// engine runs with an empty set and logs the condition, trading strictness
// for availability.
func NewEngine(cfg config.SecurityConfig, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		dict:   make(map[string]struct{}),
		logger: logger,
	}

	if err := e.loadDictionary(cfg.DictionaryPath); err != nil {
		logger.Warn("password dictionary not loaded, dictionary check disabled",
			slog.String("path", cfg.DictionaryPath),
			slog.Any("error", err))
	}

	return e
}

func (e *Engine) loadDictionary(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word != "" && !strings.HasPrefix(word, "#") {
			e.dict[word] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		// Keep whatever loaded before the failure.
		return err
	}

	e.logger.Info("password dictionary loaded", slog.Int("words", len(e.dict)))
	return nil
}

// DictionarySize reports how many banned words are loaded.
func (e *Engine) DictionarySize() int {
	return len(e.dict)
}

// ValidateComplexity checks the candidate against the configured rules in a
// fixed order (length, upper, lower, digit, symbol, username containment),
// accumulating every violated reason.
func (e *Engine) ValidateComplexity(password, username string) ComplexityResult {
	reasons := make([]string, 0)

	// Length is counted in characters, not bytes.
	if utf8.RuneCountInString(password) < e.cfg.MinLength {
		reasons = append(reasons, "too short")
	}
	if e.cfg.RequireUpper && !containsClass(password, unicode.IsUpper) {
		reasons = append(reasons, "missing uppercase")
	}
	if e.cfg.RequireLower && !containsClass(password, unicode.IsLower) {
		reasons = append(reasons, "missing lowercase")
	}
	if e.cfg.RequireDigit && !containsClass(password, unicode.IsDigit) {
		reasons = append(reasons, "missing digit")
	}
	if e.cfg.RequireSymbol && !containsSymbol(password) {
		reasons = append(reasons, "missing symbol")
	}
	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		reasons = append(reasons, "contains username")
	}

	return ComplexityResult{OK: len(reasons) == 0, Reasons: reasons}
}

// CheckDictionary rejects passwords that match a banned word exactly,
// case-insensitively. With no dictionary loaded every password passes.
func (e *Engine) CheckDictionary(password string) CheckResult {
	if _, found := e.dict[strings.ToLower(password)]; found {
		return CheckResult{OK: false, Reason: "password found in dictionary"}
	}
	return CheckResult{OK: true}
}

// CheckHistory rejects newDigest if it matches any of the supplied recent
// digests. The caller supplies exactly the last HistoryCount entries,
// newest first; comparison is by digest equality, never plaintext.
func (e *Engine) CheckHistory(newDigest string, recentDigests []string) CheckResult {
	n := e.cfg.HistoryCount
	if n <= 0 || n > len(recentDigests) {
		n = len(recentDigests)
	}

	for _, d := range recentDigests[:n] {
		if d == newDigest {
			return CheckResult{OK: false, Reason: "matches one of the last passwords"}
		}
	}
	return CheckResult{OK: true}
}

func containsClass(s string, in func(rune) bool) bool {
	for _, r := range s {
		if in(r) {
			return true
		}
	}
	return false
}

func containsSymbol(s string) bool {
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return true
		}
	}
	return false
}
