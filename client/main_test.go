package main

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		msgID   uint16
		command string
	}{
		{"create R1 alice", MsgTypeCreateRoom, ""},
		{"join R1 bob", MsgTypeJoinRoom, ""},
		{"start", MsgTypeStartGame, ""},
		{"loan 75", MsgTypeCommand, "take-loan"},
		{"buy 1 2", MsgTypeCommand, "buy-stock"},
		{"move 1 0 0", MsgTypeCommand, "move"},
		{"advance 3", MsgTypeCommand, "advance-round"},
		{"event", MsgTypeCommand, "economic-event"},
	}
	for _, tt := range tests {
		msgID, body, ok := parse(tt.line)
		if !ok {
			t.Errorf("%q should parse", tt.line)
			continue
		}
		if msgID != tt.msgID {
			t.Errorf("%q: expected msg id %d, got %d", tt.line, tt.msgID, msgID)
		}
		if tt.command == "" {
			continue
		}
		cmd, _ := body.(map[string]interface{})
		if cmd["command"] != tt.command {
			t.Errorf("%q: expected command %s, got %v", tt.line, tt.command, cmd["command"])
		}
	}

	if _, _, ok := parse("dance"); ok {
		t.Error("unknown input should not parse")
	}
	if _, _, ok := parse("   "); ok {
		t.Error("blank input should not parse")
	}
}
