package types

import (
	"errors"
	"testing"
)

func TestParseSize(t *testing.T) {
	t.Parallel()

	t.Run("valid sizes", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			input string
			want  int64
		}{
			{"1024", 1024},
			{"512B", 512},
			{"1K", KiB},
			{"100M", 100 * MiB},
			{"2G", 2 * GiB},
			{"100MB", 100 * MiB},
			{"100MiB", 100 * MiB},
			{"1.5G", GiB + 512*MiB},
			{"  10M  ", 10 * MiB},
			{"0", 0},
			{"100m", 100 * MiB},
		}

		for _, tc := range cases {
			got, err := ParseSize(tc.input)
			if err != nil {
				t.Errorf("ParseSize(%q) error = %v", tc.input, err)
				continue
			}
			if got != tc.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tc.input, got, tc.want)
			}
		}
	})

	t.Run("invalid sizes", func(t *testing.T) {
		t.Parallel()
		for _, input := range []string{"", "abc", "10X", "M100", "1.2.3G"} {
			if _, err := ParseSize(input); !errors.Is(err, ErrInvalidSize) {
				t.Errorf("ParseSize(%q) error = %v, want ErrInvalidSize", input, err)
			}
		}
	})

	t.Run("negative size", func(t *testing.T) {
		t.Parallel()
		if _, err := ParseSize("-5M"); !errors.Is(err, ErrNegativeSize) {
			t.Errorf("ParseSize(-5M) error = %v, want ErrNegativeSize", err)
		}
	})
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{KiB, "1.0 KiB"},
		{10 * MiB, "10 MiB"},
		{GiB, "1.0 GiB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.bytes); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}
