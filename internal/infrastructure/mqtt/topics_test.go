package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		got  string
		want string
	}{
		{topics.State(1, 4), "rnet/state/1/4"},
		{topics.Command(2, 6), "rnet/command/2/6"},
		{topics.Ack(1, 1), "rnet/ack/1/1"},
		{topics.Request("abc"), "rnet/request/abc"},
		{topics.Response("abc"), "rnet/response/abc"},
		{topics.Health(), "rnet/health"},
		{topics.AllCommands(), "rnet/command/#"},
		{topics.AllRequests(), "rnet/request/+"},
		{topics.AllStates(), "rnet/state/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseZoneTopic(t *testing.T) {
	tests := []struct {
		topic          string
		wantController int
		wantZone       int
		wantOK         bool
	}{
		{"rnet/command/1/4", 1, 4, true},
		{"rnet/state/6/12", 6, 12, true},
		{"rnet/command/1", 0, 0, false},
		{"rnet/command/x/4", 0, 0, false},
		{"rnet/command/1/y", 0, 0, false},
		{"other/command/1/4", 0, 0, false},
		{"rnet/command/1/4/extra", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			c, z, ok := ParseZoneTopic(tt.topic)
			if ok != tt.wantOK || c != tt.wantController || z != tt.wantZone {
				t.Errorf("ParseZoneTopic(%q) = (%d, %d, %v), want (%d, %d, %v)",
					tt.topic, c, z, ok, tt.wantController, tt.wantZone, tt.wantOK)
			}
		})
	}
}

func TestParseRequestTopic(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"rnet/request/req-1", "req-1", true},
		{"rnet/request/", "", false},
		{"rnet/request/a/b", "", false},
		{"rnet/response/req-1", "", false},
	}
	for _, tt := range tests {
		id, ok := ParseRequestTopic(tt.topic)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("ParseRequestTopic(%q) = (%q, %v), want (%q, %v)", tt.topic, id, ok, tt.wantID, tt.wantOK)
		}
	}
}
