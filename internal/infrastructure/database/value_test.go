package database

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestValueOf(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		in      any
		want    Value
		wantErr bool
	}{
		{name: "nil", in: nil, want: Null()},
		{name: "int", in: 3, want: Integer(3)},
		{name: "int8", in: int8(-8), want: Integer(-8)},
		{name: "uint16", in: uint16(16), want: Integer(16)},
		{name: "uint64 in range", in: uint64(64), want: Integer(64)},
		{name: "uint64 overflow", in: uint64(math.MaxUint64), wantErr: true},
		{name: "float32", in: float32(0.5), want: Real(0.5)},
		{name: "float64", in: 2.75, want: Real(2.75)},
		{name: "string", in: "s", want: Text("s")},
		{name: "bytes", in: []byte("b"), want: Blob([]byte("b"))},
		{name: "true", in: true, want: Integer(1)},
		{name: "false", in: false, want: Integer(0)},
		{name: "time", in: stamp, want: Text("2024-03-01 12:30:00+00:00")},
		{name: "json integer", in: json.Number("12"), want: Integer(12)},
		{name: "json real", in: json.Number("1.5"), want: Real(1.5)},
		{name: "value", in: Real(1), want: Real(1)},
		{name: "unsupported", in: map[string]int{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueOf(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ValueOf(%v) expected error, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValueOf(%v) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ValueOf(%v) = %v (%v), want %v (%v)", tt.in, got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	if i, ok := Integer(9).Int64(); !ok || i != 9 {
		t.Errorf("Int64() = %d, %v", i, ok)
	}
	if _, ok := Text("9").Int64(); ok {
		t.Error("Int64() on text reported ok")
	}
	if f, ok := Real(0.25).Float64(); !ok || f != 0.25 {
		t.Errorf("Float64() = %v, %v", f, ok)
	}
	if s, ok := Text("x").Text(); !ok || s != "x" {
		t.Errorf("Text() = %q, %v", s, ok)
	}
	if !Null().IsNull() || Integer(0).IsNull() {
		t.Error("IsNull() mismatch")
	}
	var zero Value
	if !zero.IsNull() {
		t.Error("zero Value should be NULL")
	}
}

func TestValue_BlobIsCopied(t *testing.T) {
	src := []byte{1, 2, 3}
	v := Blob(src)
	src[0] = 9

	b, ok := v.Bytes()
	if !ok || b[0] != 1 {
		t.Fatalf("Bytes() = %v, want copy taken at construction", b)
	}
	b[1] = 9
	again, _ := v.Bytes()
	if again[1] != 2 {
		t.Error("Bytes() returned the internal buffer")
	}

	if nilBlob := Blob(nil); nilBlob.IsNull() || nilBlob.Kind() != KindBlob {
		t.Errorf("Blob(nil) = %v, want empty blob", nilBlob.Kind())
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{Null(), Null(), true},
		{Integer(1), Integer(1), true},
		{Integer(1), Real(1), false},
		{Text("1"), Integer(1), false},
		{Blob([]byte("a")), Blob([]byte("a")), true},
		{Blob([]byte("a")), Text("a"), false},
		{Real(math.NaN()), Real(math.NaN()), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	row := Row{
		"n": Null(),
		"i": Integer(7),
		"r": Real(1.5),
		"t": Text("hi"),
		"b": Blob([]byte("hi")),
	}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"b":"aGk=","i":7,"n":null,"r":1.5,"t":"hi"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	data, err = json.Marshal(Real(math.Inf(1)))
	if err != nil {
		t.Fatalf("Marshal(+Inf) error = %v", err)
	}
	if string(data) != `"+Inf"` {
		t.Errorf("Marshal(+Inf) = %s", data)
	}
}

func TestKind_String(t *testing.T) {
	want := map[Kind]string{
		KindNull:    "null",
		KindInteger: "integer",
		KindReal:    "real",
		KindText:    "text",
		KindBlob:    "blob",
	}
	for k, s := range want {
		if k.String() != s {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), s)
		}
	}
}
