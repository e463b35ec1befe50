package network

import "testing"

func TestProxy_Enabled(t *testing.T) {
	tests := []struct {
		p    Proxy
		want bool
	}{
		{Proxy{}, false},
		{Proxy{Host: "127.0.0.1"}, false},
		{Proxy{Port: 1080}, false},
		{Proxy{Host: "127.0.0.1", Port: 1080}, true},
	}
	for _, tt := range tests {
		if got := tt.p.Enabled(); got != tt.want {
			t.Errorf("%+v.Enabled() = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestProxy_Dialer(t *testing.T) {
	p := Proxy{Host: "::1", Port: 1080}
	if got := p.Addr(); got != "[::1]:1080" {
		t.Errorf("Addr() = %q", got)
	}
	dialer, err := p.Dialer()
	if err != nil || dialer == nil {
		t.Fatalf("Dialer() = %v, %v", dialer, err)
	}
}

func TestProxy_DialFunc(t *testing.T) {
	if (Proxy{}).DialFunc() != nil {
		t.Error("expected nil dial function without a proxy")
	}
	if (Proxy{Host: "127.0.0.1", Port: 1080}).DialFunc() == nil {
		t.Error("expected a dial function with a proxy")
	}
}
