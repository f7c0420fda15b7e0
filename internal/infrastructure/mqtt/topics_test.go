package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"label update", topics.LabelUpdate("etiq_001"), "etiquetas/etiq_001/update"},
		{"label status", topics.LabelStatus("etiq_001"), "etiquetas/etiq_001/status"},
		{"all updates", topics.AllLabelUpdates(), "etiquetas/+/update"},
		{"all statuses", topics.AllLabelStatuses(), "etiquetas/+/status"},
		{"system status", topics.SystemStatus(), "esl/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestLabelIDFromTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"etiquetas/etiq_001/update", "etiq_001"},
		{"etiquetas/etiq_042/status", "etiq_042"},
		{"etiquetas//status", ""},
		{"etiquetas/etiq_001", ""},
		{"esl/system/status", ""},
		{"etiquetas/a/b/c", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := LabelIDFromTopic(tt.topic); got != tt.want {
			t.Errorf("LabelIDFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}
