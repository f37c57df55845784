package transcript

// SystemPrompt — фиксированное системное сообщение, с которого начинается каждый диалог.
const SystemPrompt = "You are a helpful assistant."

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript — упорядоченный журнал сообщений одной сессии, только на добавление.
// Чередование user/assistant не проверяется. Не потокобезопасен: владелец — сессия.
type Transcript struct {
	messages []Message
}

// New создаёт диалог, содержащий ровно одно системное сообщение.
func New() *Transcript {
	return &Transcript{messages: []Message{{Role: RoleSystem, Content: SystemPrompt}}}
}

// Append добавляет сообщение в конец. Ограничения на размер нет.
func (t *Transcript) Append(role Role, content string) {
	t.messages = append(t.messages, Message{Role: role, Content: content})
}

// All возвращает копию всей последовательности; используется как контекст следующего запроса.
func (t *Transcript) All() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int { return len(t.messages) }
