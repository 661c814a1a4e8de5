package logic

import (
	"errors"
	"fmt"
)

// Runtime parameter bounds.
const (
	MinConf          = 0.0
	MaxConf          = 1.0
	MinImgSz         = 128
	MaxImgSz         = 1280
	MinProcessEveryN = 1
	MaxProcessEveryN = 10
)

// ErrParamRejected is wrapped by every runtime parameter validation failure.
var ErrParamRejected = errors.New("parameter rejected")

// RuntimeParams are the detector settings that may change while running.
type RuntimeParams struct {
	Conf          float64 // detection confidence threshold
	ImgSz         int     // detector input size in pixels
	ProcessEveryN int     // run detection on every Nth frame
}

// DefaultRuntimeParams returns the stock detector settings.
func DefaultRuntimeParams() RuntimeParams {
	return RuntimeParams{Conf: 0.30, ImgSz: 416, ProcessEveryN: 1}
}

// ParamsUpdate is a partial update; nil fields are left unchanged.
type ParamsUpdate struct {
	Conf          *float64 `json:"conf,omitempty"`
	ImgSz         *int     `json:"imgsz,omitempty"`
	ProcessEveryN *int     `json:"process_n,omitempty"`
}

// Validate checks every field of p against its bounds.
func (p RuntimeParams) Validate() error {
	_, err := p.Apply(ParamsUpdate{Conf: &p.Conf, ImgSz: &p.ImgSz, ProcessEveryN: &p.ProcessEveryN})
	return err
}

// Apply returns p with the valid fields of u applied. Invalid fields keep
// their previous value and are reported in the returned error.
func (p RuntimeParams) Apply(u ParamsUpdate) (RuntimeParams, error) {
	var errs []error
	if u.Conf != nil {
		if *u.Conf >= MinConf && *u.Conf <= MaxConf {
			p.Conf = *u.Conf
		} else {
			errs = append(errs, fmt.Errorf("%w: conf %v not in [%v,%v]", ErrParamRejected, *u.Conf, MinConf, MaxConf))
		}
	}
	if u.ImgSz != nil {
		if *u.ImgSz >= MinImgSz && *u.ImgSz <= MaxImgSz {
			p.ImgSz = *u.ImgSz
		} else {
			errs = append(errs, fmt.Errorf("%w: imgsz %d not in [%d,%d]", ErrParamRejected, *u.ImgSz, MinImgSz, MaxImgSz))
		}
	}
	if u.ProcessEveryN != nil {
		if *u.ProcessEveryN >= MinProcessEveryN && *u.ProcessEveryN <= MaxProcessEveryN {
			p.ProcessEveryN = *u.ProcessEveryN
		} else {
			errs = append(errs, fmt.Errorf("%w: process_n %d not in [%d,%d]", ErrParamRejected, *u.ProcessEveryN, MinProcessEveryN, MaxProcessEveryN))
		}
	}
	return p, errors.Join(errs...)
}
