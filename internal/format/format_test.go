package format

import "testing"

func TestLink(t *testing.T) {
	got := Link("http://www.test.com?foo=1&bar=2", "<foo&>")
	want := "<http://www.test.com?foo=1&bar=2|&lt;foo&amp;&gt;>"
	if got != want {
		t.Fatalf("Link() = %q, want %q", got, want)
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "nothing to do", "nothing to do"},
		{"mixed entities", "& test &lt; <yes|no&amp;> &gt;& &amtest", "&amp; test &lt; &lt;yes|no&amp;&gt; &gt;&amp; &amp;amtest"},
		{"only entities", "&amp;&lt;&gt;", "&amp;&lt;&gt;"},
		{"unknown entity", "&quot;", "&amp;quot;"},
		{"brackets", "a<b>c", "a&lt;b&gt;c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Fatalf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextIdempotentOnEscapedInput(t *testing.T) {
	in := "a & b < c > d"
	once := Text(in)
	if twice := Text(once); twice != once {
		t.Fatalf("escaping twice changed output: %q -> %q", once, twice)
	}
}

func TestMention(t *testing.T) {
	if got := Mention("", "Jane <J>"); got != "Jane &lt;J&gt;" {
		t.Fatalf("Mention without handle = %q", got)
	}
	if got := Mention("@U123", "Jane"); got != "<@U123> (Jane)" {
		t.Fatalf("Mention with handle = %q", got)
	}
}
