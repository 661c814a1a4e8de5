package logic

import (
	"errors"
	"strings"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestApplyValidUpdate(t *testing.T) {
	p := DefaultRuntimeParams()
	got, err := p.Apply(ParamsUpdate{Conf: ptr(0.55), ImgSz: ptr(640), ProcessEveryN: ptr(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := RuntimeParams{Conf: 0.55, ImgSz: 640, ProcessEveryN: 2}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestApplyPartialUpdate(t *testing.T) {
	p := DefaultRuntimeParams()
	got, err := p.Apply(ParamsUpdate{Conf: ptr(1.5), ImgSz: ptr(320), ProcessEveryN: ptr(0)})
	if err == nil {
		t.Fatal("expected error for out-of-range fields")
	}
	if !errors.Is(err, ErrParamRejected) {
		t.Errorf("error should wrap ErrParamRejected: %v", err)
	}
	for _, field := range []string{"conf", "process_n"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error should name %s: %v", field, err)
		}
	}
	if strings.Contains(err.Error(), "imgsz") {
		t.Errorf("error should not name imgsz: %v", err)
	}

	want := RuntimeParams{Conf: p.Conf, ImgSz: 320, ProcessEveryN: p.ProcessEveryN}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestApplyBounds(t *testing.T) {
	p := DefaultRuntimeParams()
	tests := []struct {
		name string
		u    ParamsUpdate
		ok   bool
	}{
		{"conf 0", ParamsUpdate{Conf: ptr(0.0)}, true},
		{"conf 1", ParamsUpdate{Conf: ptr(1.0)}, true},
		{"conf negative", ParamsUpdate{Conf: ptr(-0.01)}, false},
		{"imgsz 128", ParamsUpdate{ImgSz: ptr(128)}, true},
		{"imgsz 1280", ParamsUpdate{ImgSz: ptr(1280)}, true},
		{"imgsz 127", ParamsUpdate{ImgSz: ptr(127)}, false},
		{"imgsz 1281", ParamsUpdate{ImgSz: ptr(1281)}, false},
		{"process_n 1", ParamsUpdate{ProcessEveryN: ptr(1)}, true},
		{"process_n 10", ParamsUpdate{ProcessEveryN: ptr(10)}, true},
		{"process_n 11", ParamsUpdate{ProcessEveryN: ptr(11)}, false},
		{"empty", ParamsUpdate{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Apply(tt.u)
			if (err == nil) != tt.ok {
				t.Errorf("Apply: err=%v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestRuntimeParamsValidate(t *testing.T) {
	if err := DefaultRuntimeParams().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if err := (RuntimeParams{Conf: 0.3, ImgSz: 64, ProcessEveryN: 1}).Validate(); err == nil {
		t.Error("expected error for imgsz 64")
	}
}
