package consistency

import (
	"errors"
	"testing"
)

func ints(vals ...int64) []Value {
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = IntValue(v)
	}
	return out
}

func TestItemCountOK_Generic(t *testing.T) {
	spec, _ := Lookup("hosts")

	tests := []struct {
		name      string
		summaries []Value
		want      bool
	}{
		{name: "all equal", summaries: ints(4, 4, 4), want: true},
		{name: "one differs", summaries: ints(4, 3, 4), want: false},
		{name: "single node", summaries: ints(7), want: true},
		{name: "no nodes", summaries: nil, want: true},
		{name: "absent node", summaries: []Value{IntValue(4), AbsentValue(), IntValue(4)}, want: false},
		{name: "all absent", summaries: []Value{AbsentValue(), AbsentValue()}, want: false},
		{name: "equal text", summaries: []Value{TextValue("OFF"), TextValue("OFF")}, want: true},
		{name: "different text", summaries: []Value{TextValue("OFF"), TextValue("ON")}, want: false},
		{name: "equal flags", summaries: []Value{BoolValue(true), BoolValue(true)}, want: true},
		{name: "mixed kinds", summaries: []Value{IntValue(1), TextValue("1")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ItemCountOK(spec, tt.summaries, DefaultReplicationPolicy())
			if err != nil {
				t.Fatalf("ItemCountOK() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ItemCountOK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItemCountOK_ZeroTolerance(t *testing.T) {
	for _, name := range []string{"conflicts", "ghosts"} {
		spec, _ := Lookup(name)

		tests := []struct {
			name      string
			summaries []Value
			want      bool
		}{
			{name: "all zero", summaries: ints(0, 0, 0), want: true},
			{name: "one non-zero", summaries: ints(0, 1, 0), want: false},
			{name: "equal but non-zero", summaries: ints(2, 2, 2), want: false},
			{name: "absent node", summaries: []Value{IntValue(0), AbsentValue()}, want: false},
			{name: "no nodes", summaries: nil, want: true},
		}

		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, err := ItemCountOK(spec, tt.summaries, DefaultReplicationPolicy())
				if err != nil {
					t.Fatalf("ItemCountOK() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("ItemCountOK() = %v, want %v", got, tt.want)
				}
			})
		}
	}
}

func TestItemCountOK_Replication(t *testing.T) {
	spec, _ := Lookup("replicas")

	tests := []struct {
		name      string
		summaries []Value
		policy    ReplicationPolicy
		want      bool
		wantErr   error
	}{
		{
			name:      "healthy agreements",
			summaries: []Value{TextValue("b 0\nc 1"), TextValue("a 0\nc 0")},
			policy:    DefaultReplicationPolicy(),
			want:      true,
		},
		{
			name:      "code outside policy",
			summaries: []Value{TextValue("b 0\nc 2"), TextValue("a 0\nc 0")},
			policy:    DefaultReplicationPolicy(),
			want:      false,
		},
		{
			name:      "missing node report",
			summaries: []Value{TextValue("b 0"), AbsentValue()},
			policy:    DefaultReplicationPolicy(),
			want:      false,
		},
		{
			name:      "node without agreements",
			summaries: []Value{TextValue(""), TextValue("a 0")},
			policy:    DefaultReplicationPolicy(),
			want:      true,
		},
		{
			name:      "custom policy accepts 18",
			summaries: []Value{TextValue("b 18"), TextValue("a 0")},
			policy:    ReplicationPolicy{OKCodes: []int{0, 18}},
			want:      true,
		},
		{
			name:      "custom policy rejects 1",
			summaries: []Value{TextValue("b 1")},
			policy:    ReplicationPolicy{OKCodes: []int{0, 18}},
			want:      false,
		},
		{
			name:      "three tokens",
			summaries: []Value{TextValue("b 0 extra")},
			policy:    DefaultReplicationPolicy(),
			wantErr:   ErrMalformedReplicationLine,
		},
		{
			name:      "non-numeric code",
			summaries: []Value{TextValue("b ok")},
			policy:    DefaultReplicationPolicy(),
			wantErr:   ErrMalformedReplicationLine,
		},
		{
			name:      "not text",
			summaries: []Value{IntValue(0)},
			policy:    DefaultReplicationPolicy(),
			wantErr:   ErrMalformedReplicationLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ItemCountOK(spec, tt.summaries, tt.policy)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ItemCountOK() error = %v, want %v", err, tt.wantErr)
				}
				if got {
					t.Error("ItemCountOK() = true on malformed input")
				}
				return
			}
			if err != nil {
				t.Fatalf("ItemCountOK() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ItemCountOK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseReplicationStatus(t *testing.T) {
	codes, err := ParseReplicationStatus("ipa02 0\n\n  ipa03   1  \n")
	if err != nil {
		t.Fatalf("ParseReplicationStatus() error = %v", err)
	}
	if len(codes) != 2 || codes[0] != 0 || codes[1] != 1 {
		t.Errorf("ParseReplicationStatus() = %v, want [0 1]", codes)
	}
}
