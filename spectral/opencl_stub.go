//go:build !opencl

package spectral

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

var errNoOpenCL = fmt.Errorf("%w: OpenCL support is not enabled; rebuild with -tags opencl", ErrUnavailable)

type OpenCLBackend struct{}

// DeviceInfo describes one OpenCL device.
type DeviceInfo struct {
	Platform     string
	Name         string
	Type         string
	ComputeUnits int
	GlobalMem    int64
}

func ListDevices() ([]DeviceInfo, error) { return nil, errNoOpenCL }

func NewOpenCLBackend(Grid, Params, logrus.FieldLogger) (*OpenCLBackend, error) {
	return nil, errNoOpenCL
}

func (b *OpenCLBackend) Name() string { return "opencl" }
func (b *OpenCLBackend) DeviceName() string { return "" }
func (b *OpenCLBackend) Upload([]float64) error { return errNoOpenCL }
func (b *OpenCLBackend) Add(float64) error { return errNoOpenCL }
func (b *OpenCLBackend) Step(context.Context, int) error { return errNoOpenCL }
func (b *OpenCLBackend) Download(Field, []complex128) error { return errNoOpenCL }
func (b *OpenCLBackend) Close() {}
