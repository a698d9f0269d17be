package utils

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+7 926 123-45-67", "+79261234567"},
		{"8 (926) 123-45-67", "+79261234567"},
		{" +79261234567 ", "+79261234567"},
	}
	for _, c := range cases {
		got, err := NormalizePhone(c.in)
		if err != nil {
			t.Fatalf("%q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("%q -> %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePhoneRejectsInvalid(t *testing.T) {
	for _, in := range []string{"123", "not a phone"} {
		if _, err := NormalizePhone(in); err == nil {
			t.Fatalf("%q accepted", in)
		}
	}
}
