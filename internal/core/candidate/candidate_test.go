package candidate

import (
	"math"
	"strings"
	"testing"

	perr "t2/internal/platform/errors"
	kit "t2/internal/platform/testkit"
)

func TestParse_OK(t *testing.T) {
	c, err := Parse("  12.5\t3\t1024\t60123.000123\t8\t41\t56.78 \n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Candidate{
		Significance: 12.5,
		FreqChannel:  3,
		TimeIndex:    1024,
		Timestamp:    60123.000123,
		Boxcar:       8,
		DMIndex:      41,
		DM:           56.78,
	}
	if c != want {
		t.Fatalf("Parse = %+v, want %+v", c, want)
	}
}

func TestParse_FieldCount(t *testing.T) {
	for _, in := range []string{
		"",
		"12.5\t3\t1024\t60123\t8\t41",
		"12.5\t3\t1024\t60123\t8\t41\t56.7\t9",
		"12.5 3 1024 60123 8 41 56.7",
	} {
		c, err := Parse(in)
		kit.MustCode(t, err, perr.ErrorCodeParse)
		if c != (Candidate{}) {
			t.Fatalf("Parse(%q) returned partial candidate %+v", in, c)
		}
	}
}

func TestParse_BadField(t *testing.T) {
	cases := []struct {
		in    string
		field string
	}{
		{"abc\t3\t1024\t60123\t8\t41\t56.7", "snr"},
		{"12\t3.5\t1024\t60123\t8\t41\t56.7", "freq_channel"},
		{"12\t3\tx\t60123\t8\t41\t56.7", "time_index"},
		{"12\t3\t1024\t\t8\t41\t56.7", "mjds"},
		{"12\t3\t1024\t60123\t8.0\t41\t56.7", "boxcar"},
		{"12\t3\t1024\t60123\t8\t-\t56.7", "dm_index"},
		{"12\t3\t1024\t60123\t8\t41\tdm", "dm"},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		kit.MustCode(t, err, perr.ErrorCodeParse)
		e, _ := perr.As(err)
		if e.Field() != c.field {
			t.Fatalf("Parse(%q) field = %q, want %q", c.in, e.Field(), c.field)
		}
		if got != (Candidate{}) {
			t.Fatalf("partial candidate on error: %+v", got)
		}
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	in := Candidate{Significance: 40.25, FreqChannel: 1, TimeIndex: 101, Timestamp: 60400.5, Boxcar: 4, DMIndex: 51, DM: 77.125}
	line := in.Format()
	if strings.Count(line, "\t") != NumFields-1 {
		t.Fatalf("Format produced %q", line)
	}
	out, err := Parse(line)
	if err != nil || out != in {
		t.Fatalf("round trip = %+v, %v", out, err)
	}
}

func TestParseRecord_TrimsPadding(t *testing.T) {
	rec := []byte("\x00 25\t0\t100\t60000.1\t4\t50\t70\r\n\x00\x00\x00")
	c, err := ParseRecord(rec)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if c.Significance != 25 || c.DM != 70 || c.TimeIndex != 100 {
		t.Fatalf("ParseRecord = %+v", c)
	}
}

func TestParseRecord_RejectsEmbeddedControls(t *testing.T) {
	cases := []struct {
		rec   string
		field string
	}{
		{"2\x005\t0\t100\t59000.5\t4\t50\t100.5", "snr"},
		{"25\t0\t100\t59000.5\t4\t50\t1\x0000.5", "dm"},
		{"25\t0\t1\x070\t59000.5\t4\t50\t100.5", "time_index"},
		{"25\t0\t100\t59000.5\t\xff4\t50\t100.5", "boxcar"},
	}
	for _, c := range cases {
		got, err := ParseRecord([]byte(c.rec))
		kit.MustCode(t, err, perr.ErrorCodeParse)
		if e, _ := perr.As(err); e.Field() != c.field {
			t.Fatalf("ParseRecord(%q) field = %q, want %q", c.rec, e.Field(), c.field)
		}
		if got != (Candidate{}) {
			t.Fatalf("partial candidate on error: %+v", got)
		}
	}
}

func TestParse_IntegerRange(t *testing.T) {
	c, err := Parse("25\t-2147483648\t2147483647\t59000.5\t4\t50\t100.5")
	if err != nil || c.FreqChannel != math.MinInt32 || c.TimeIndex != math.MaxInt32 {
		t.Fatalf("Parse = %+v, %v", c, err)
	}
	for _, c := range []struct{ in, field string }{
		{"25\t0\t100\t59000.5\t2147483648\t50\t100.5", "boxcar"},
		{"25\t0\t100\t59000.5\t4294967300\t50\t100.5", "boxcar"},
		{"25\t0\t100\t59000.5\t4\t2147483655\t100.5", "dm_index"},
		{"25\t-2147483649\t100\t59000.5\t4\t50\t100.5", "freq_channel"},
	} {
		_, err := Parse(c.in)
		kit.MustCode(t, err, perr.ErrorCodeParse)
		if e, _ := perr.As(err); e.Field() != c.field {
			t.Fatalf("Parse(%q) field = %q, want %q", c.in, e.Field(), c.field)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize("1\t2"); got != "1\t2" {
		t.Fatalf("clean input changed: %q", got)
	}
	if got := Sanitize(" 1\t2\x00\x00"); got != "1\t2" {
		t.Fatalf("padding kept: %q", got)
	}
	if got := Sanitize("1\x07\t2"); got != "1\x07\t2" {
		t.Fatalf("embedded control removed: %q", got)
	}
	if got := Sanitize("1\xff\t2"); got != "1\ufffd\t2" {
		t.Fatalf("ill-formed byte = %q", got)
	}
}

func TestParse_SpecialFloats(t *testing.T) {
	// strconv accepts these; downstream filters decide what to do with them
	c, err := Parse("NaN\t0\t1\t2\t1\t1\tInf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !math.IsNaN(c.Significance) || !math.IsInf(c.DM, 1) {
		t.Fatalf("Parse = %+v", c)
	}
}
