package tenant

import "testing"

func TestResolveSubdomain(t *testing.T) {
	cases := []struct {
		host string
		want string
		ok   bool
	}{
		{host: "bobscafe.cardapy.com.br", want: "bobscafe", ok: true},
		{host: "bobscafe.cardapy.com", want: "bobscafe", ok: true},
		{host: "bobscafe.cardapy.com:8080", want: "bobscafe", ok: true},
		{host: "bobscafe.cardapy.com.", want: "bobscafe", ok: true},
		{host: "BobsCafe.cardapy.com", want: "BobsCafe", ok: true},
		{host: "cardapy.com"},
		{host: "localhost"},
		{host: "localhost:8000"},
		{host: "bobscafe.localhost"},
		{host: "bobscafe.app.localhost"},
		{host: "127.0.0.1"},
		{host: "127.0.0.1:8000"},
		{host: "[::1]:8000"},
		{host: "admin.cardapy.com"},
		{host: "API.cardapy.com"},
		{host: "www.cardapy.com"},
		{host: ".cardapy.com"},
		{host: ""},
	}
	for _, tc := range cases {
		got, ok := ResolveSubdomain(tc.host)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ResolveSubdomain(%q) = (%q, %v), want (%q, %v)", tc.host, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIsPlatformHost(t *testing.T) {
	if !IsPlatformHost("api.cardapy.com") {
		t.Fatalf("api host should be platform scoped")
	}
	if IsPlatformHost("bobscafe.cardapy.com") {
		t.Fatalf("tenant host should not be platform scoped")
	}
}
