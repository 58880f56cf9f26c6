package encoding

import (
	"reflect"
	"testing"

	"github.com/tryfix/kjoin/data"
	"github.com/tryfix/kjoin/errdefs"
)

func TestRowEncoder_Encode(t *testing.T) {
	type args struct {
		v interface{}
	}
	tests := []struct {
		name    string
		args    args
		wantErr bool
	}{
		{name: `should_encode`, args: args{data.NewRow(1, `a`, nil, 2.5, []byte(`b`), true)}, wantErr: false},
		{name: `should_encode_empty`, args: args{data.Row{}}, wantErr: false},
		{name: `should_return_error_for_non_row`, args: args{100}, wantErr: true},
		{name: `should_return_error_for_unsupported_field`, args: args{data.Row{struct{}{}}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RowEncoder{}.Encode(tt.args.v)
			if (err != nil) != tt.wantErr {
				t.Errorf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRowEncoder_Decode(t *testing.T) {
	row := data.NewRow(-7, `key`, nil, 1.25, []byte{0, 1}, false, true)
	byt, err := RowEncoder{}.Encode(row)
	if err != nil {
		t.Fatal(err)
	}

	got, err := RowEncoder{}.Decode(byt)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(got, row) {
		t.Errorf("Decode() got = %v, want %v", got, row)
	}
}

func TestRowEncoder_Decode_Corrupted(t *testing.T) {
	byt, err := RowEncoder{}.Encode(data.NewRow(`abcdef`))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: `empty`, data: nil},
		{name: `truncated_payload`, data: byt[:len(byt)-2]},
		{name: `trailing_bytes`, data: append(append([]byte(nil), byt...), 0)},
		{name: `unknown_tag`, data: []byte{1, 99}},
		{name: `arity_too_large`, data: []byte{100, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RowEncoder{}.Decode(tt.data)
			if !errdefs.IsDataCorruption(err) {
				t.Errorf("Decode() error = %v, want data corruption", err)
			}
		})
	}
}

func TestReadRow_Sequence(t *testing.T) {
	var buf []byte
	rows := []data.Row{data.NewRow(1), data.NewRow(2, `x`), data.NewRow(nil)}
	for _, r := range rows {
		var err error
		buf, err = AppendRow(buf, r)
		if err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range rows {
		got, n, err := ReadRow(buf)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf(`got %v want %v`, got, want)
		}
		buf = buf[n:]
	}

	if len(buf) != 0 {
		t.Errorf(`%d bytes left`, len(buf))
	}
}
