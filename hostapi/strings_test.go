package hostapi

import (
	"math"
	"testing"
)

func TestStringOps(t *testing.T) {
	fns := surface(t, nil)

	// Two-string inputs first: (a, b) -> string.
	t.Run("concat", func(t *testing.T) {
		e, ctx := newEnv(t)
		aPtr, aLen := put(t, e, "foo")
		bPtr, bLen := put(t, e, "bar")
		stack := call(ctx, fns["env.string_concat"], aPtr, aLen, bPtr, bLen)
		if got := readStr(t, e, stack[0]); got != "foobar" {
			t.Errorf("concat = %q, want foobar", got)
		}
	})

	t.Run("substring", func(t *testing.T) {
		for _, tc := range []struct {
			name       string
			in         string
			start, end int64
			want       string
		}{
			{"middle", "hello world", 6, 11, "world"},
			{"clamped end", "hello", 1, 99, "ello"},
			{"negative start", "hello", -3, 2, "he"},
			{"inverted range", "hello", 4, 1, ""},
			{"empty input", "", 0, 5, ""},
		} {
			t.Run(tc.name, func(t *testing.T) {
				e, ctx := newEnv(t)
				ptr, n := put(t, e, tc.in)
				stack := call(ctx, fns["env.string_substring"], ptr, n, uint64(tc.start), uint64(tc.end))
				if got := readStr(t, e, stack[0]); got != tc.want {
					t.Errorf("substring(%q, %d, %d) = %q, want %q", tc.in, tc.start, tc.end, got, tc.want)
				}
			})
		}
	})

	t.Run("index_of", func(t *testing.T) {
		for _, tc := range []struct {
			haystack, needle string
			want             int64
		}{
			{"hello world", "world", 6},
			{"hello", "xyz", -1},
			{"héllo", "llo", 3}, // byte index, not rune index
		} {
			e, ctx := newEnv(t)
			hPtr, hLen := put(t, e, tc.haystack)
			nPtr, nLen := put(t, e, tc.needle)
			stack := call(ctx, fns["env.string_index_of"], hPtr, hLen, nPtr, nLen)
			if got := int64(stack[0]); got != tc.want {
				t.Errorf("index_of(%q, %q) = %d, want %d", tc.haystack, tc.needle, got, tc.want)
			}
		}
	})

	t.Run("compare", func(t *testing.T) {
		for _, tc := range []struct {
			a, b string
			want int64
		}{
			{"a", "b", -1},
			{"b", "a", 1},
			{"same", "same", 0},
		} {
			e, ctx := newEnv(t)
			aPtr, aLen := put(t, e, tc.a)
			bPtr, bLen := put(t, e, tc.b)
			stack := call(ctx, fns["env.string_compare"], aPtr, aLen, bPtr, bLen)
			if got := int64(stack[0]); got != tc.want {
				t.Errorf("compare(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		}
	})

	t.Run("replace", func(t *testing.T) {
		e, ctx := newEnv(t)
		sPtr, sLen := put(t, e, "b-b-b")
		oldPtr, oldLen := put(t, e, "b")
		newPtr, newLen := put(t, e, "x")
		stack := call(ctx, fns["env.string_replace"], sPtr, sLen, oldPtr, oldLen, newPtr, newLen)
		if got := readStr(t, e, stack[0]); got != "x-x-x" {
			t.Errorf("replace = %q, want x-x-x", got)
		}
	})

	t.Run("split", func(t *testing.T) {
		e, ctx := newEnv(t)
		sPtr, sLen := put(t, e, "a,b,,c")
		sepPtr, sepLen := put(t, e, ",")
		stack := call(ctx, fns["env.string_split"], sPtr, sLen, sepPtr, sepLen)
		if got := readStr(t, e, stack[0]); got != `["a","b","","c"]` {
			t.Errorf("split = %q", got)
		}
	})

	t.Run("case and trim", func(t *testing.T) {
		for _, tc := range []struct {
			fn   string
			in   string
			want string
		}{
			{"env.string_to_upper", "héllo", "HÉLLO"},
			{"env.string_to_lower", "HÉLLO", "héllo"},
			{"env.string_trim", "  x  ", "x"},
			{"env.string_trim_start", "\t x ", "x "},
			{"env.string_trim_end", " x \n", " x"},
		} {
			e, ctx := newEnv(t)
			ptr, n := put(t, e, tc.in)
			stack := call(ctx, fns[tc.fn], ptr, n)
			if got := readStr(t, e, stack[0]); got != tc.want {
				t.Errorf("%s(%q) = %q, want %q", tc.fn, tc.in, got, tc.want)
			}
		}
	})
}

func TestStringConversions(t *testing.T) {
	fns := surface(t, nil)

	t.Run("int_to_string", func(t *testing.T) {
		e, ctx := newEnv(t)
		stack := call(ctx, fns["env.int_to_string"], i64(-42))
		if got := readStr(t, e, stack[0]); got != "-42" {
			t.Errorf("int_to_string(-42) = %q", got)
		}
	})

	t.Run("float_to_string", func(t *testing.T) {
		e, ctx := newEnv(t)
		stack := call(ctx, fns["env.float_to_string"], f64(2.5))
		if got := readStr(t, e, stack[0]); got != "2.5" {
			t.Errorf("float_to_string(2.5) = %q", got)
		}
	})

	t.Run("bool_to_string", func(t *testing.T) {
		e, ctx := newEnv(t)
		stack := call(ctx, fns["env.bool_to_string"], 1)
		if got := readStr(t, e, stack[0]); got != "true" {
			t.Errorf("bool_to_string(1) = %q", got)
		}
	})

	t.Run("string_to_int", func(t *testing.T) {
		for _, tc := range []struct {
			in   string
			want int64
		}{
			{"123", 123},
			{" -7 ", -7},
			{"12x", 0},
			{"", 0},
		} {
			e, ctx := newEnv(t)
			ptr, n := put(t, e, tc.in)
			stack := call(ctx, fns["env.string_to_int"], ptr, n)
			if got := int64(stack[0]); got != tc.want {
				t.Errorf("string_to_int(%q) = %d, want %d", tc.in, got, tc.want)
			}
		}
	})

	t.Run("string_to_float", func(t *testing.T) {
		for _, tc := range []struct {
			in   string
			want float64
		}{
			{"2.5", 2.5},
			{"junk", 0},
		} {
			e, ctx := newEnv(t)
			ptr, n := put(t, e, tc.in)
			stack := call(ctx, fns["env.string_to_float"], ptr, n)
			if got := math.Float64frombits(stack[0]); got != tc.want {
				t.Errorf("string_to_float(%q) = %v, want %v", tc.in, got, tc.want)
			}
		}
	})

	t.Run("string_to_bool", func(t *testing.T) {
		for _, tc := range []struct {
			in   string
			want uint64
		}{
			{"true", 1},
			{"TRUE", 1},
			{"1", 1},
			{"yes", 1},
			{"on", 1},
			{"false", 0},
			{"0", 0},
			{"maybe", 0},
			{"", 0},
		} {
			e, ctx := newEnv(t)
			ptr, n := put(t, e, tc.in)
			stack := call(ctx, fns["env.string_to_bool"], ptr, n)
			if stack[0] != tc.want {
				t.Errorf("string_to_bool(%q) = %d, want %d", tc.in, stack[0], tc.want)
			}
		}
	})
}
