package persona

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"healthadvisor/backend/internal/rules"
)

type Persona string

const (
	Friend  Persona = "friend"
	Coach   Persona = "coach"
	Advisor Persona = "advisor"
)

type Verbosity string

const (
	Minimal  Verbosity = "minimal"
	Detailed Verbosity = "detailed"
)

type Prefs struct {
	Persona   Persona   `json:"persona"`
	Verbosity Verbosity `json:"verbosity"`
	LowAsk    bool      `json:"low_ask"`
}

func Defaults() Prefs {
	return Prefs{Persona: Friend, Verbosity: Minimal}
}

// Normalize coerces unknown or empty values to the defaults.
func Normalize(p Prefs) Prefs {
	out := Prefs{LowAsk: p.LowAsk}
	switch Persona(strings.ToLower(strings.TrimSpace(string(p.Persona)))) {
	case Coach:
		out.Persona = Coach
	case Advisor:
		out.Persona = Advisor
	default:
		out.Persona = Friend
	}
	switch Verbosity(strings.ToLower(strings.TrimSpace(string(p.Verbosity)))) {
	case Detailed:
		out.Verbosity = Detailed
	default:
		out.Verbosity = Minimal
	}
	return out
}

// Store reads and writes persona preferences. Implementations return
// Defaults() for users without a saved row.
type Store interface {
	PersonaPrefs(ctx context.Context, userID string) (Prefs, error)
	SavePersonaPrefs(ctx context.Context, userID string, prefs Prefs) error
}

var conclusions = map[Persona][]string{
	Friend: {
		"Cố lên nha, mình luôn ở đây cùng bạn!",
		"Từng bước nhỏ thôi, bạn làm được mà!",
		"Ăn ngon và giữ sức khỏe nhé bạn ơi!",
	},
	Coach: {
		"Mục tiêu tuần này: áp dụng ít nhất một gợi ý ở trên mỗi ngày.",
		"Ghi lại bữa tiếp theo để chúng ta đo tiến bộ nhé.",
		"Giữ nhịp này, kết quả sẽ đến từ sự đều đặn.",
	},
	Advisor: {
		"Vui lòng áp dụng các khuyến nghị trên và theo dõi chỉ số định kỳ.",
		"Khuyến nghị trên mang tính tham khảo; hãy trao đổi với bác sĩ khi cần.",
	},
}

// Transform applies tone and verbosity to tip in place. Summary and the
// wording of suggestions are never changed.
func Transform(tip *rules.Tip, prefs Prefs) {
	if tip == nil {
		return
	}
	prefs = Normalize(prefs)
	tip.Conclusion = Conclusion(prefs.Persona, tip.Summary)
	if (prefs.Verbosity == Minimal || prefs.LowAsk) && len(tip.Suggestions) > 1 {
		tip.Suggestions = tip.Suggestions[:1]
	}
}

// Conclusion picks one of the persona's closings. The pick is a function of
// seed so identical tips always format identically.
func Conclusion(p Persona, seed string) string {
	set, ok := conclusions[p]
	if !ok {
		set = conclusions[Friend]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return set[int(h.Sum32()%uint32(len(set)))]
}

// MemoryStore keeps preferences in process. Used when no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]Prefs
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: map[string]Prefs{}}
}

func (s *MemoryStore) PersonaPrefs(_ context.Context, userID string) (Prefs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if prefs, ok := s.prefs[userID]; ok {
		return prefs, nil
	}
	return Defaults(), nil
}

func (s *MemoryStore) SavePersonaPrefs(_ context.Context, userID string, prefs Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = Normalize(prefs)
	return nil
}
