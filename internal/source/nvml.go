package source

import (
	"context"
	"fmt"

	"codeberg.org/mutker/pollctl/internal/config"
	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const milliWattsToWatts = 1000

// gpuDevice is the subset of nvml.Device the source reads.
type gpuDevice interface {
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
}

// NVML samples GPU core temperature in °C or board power draw in W.
type NVML struct {
	device   gpuDevice
	index    int
	metric   string
	shutdown func() nvml.Return
}

// OpenNVML initializes NVML and binds to the GPU at index.
func OpenNVML(index int, metric string, log logger.Logger) (*NVML, error) {
	errFactory := errors.New()

	if metric != config.GPUMetricTemperature && metric != config.GPUMetricPower {
		return nil, errFactory.WithData(ErrUnknownMetric, metric)
	}

	if ret := nvml.Init(); !isNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrNVMLInit, newNVMLError(ret))
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !isNVMLSuccess(ret) {
		nvml.Shutdown()
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	if name, ret := device.GetName(); isNVMLSuccess(ret) {
		log.Info().Int("index", index).Str("metric", metric).Msgf("Detected GPU: %v", name)
	} else {
		log.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return newNVML(device, index, metric, nvml.Shutdown), nil
}

func newNVML(device gpuDevice, index int, metric string, shutdown func() nvml.Return) *NVML {
	return &NVML{
		device:   device,
		index:    index,
		metric:   metric,
		shutdown: shutdown,
	}
}

func (n *NVML) Name() string {
	return fmt.Sprintf("nvml:%d:%s", n.index, n.metric)
}

func (n *NVML) Read(ctx context.Context) (uint16, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	switch n.metric {
	case config.GPUMetricTemperature:
		temp, ret := n.device.GetTemperature(nvml.TEMPERATURE_GPU)
		if !isNVMLSuccess(ret) {
			return 0, errFactory.Wrap(ErrTemperatureFailed, newNVMLError(ret))
		}

		return clampSample(temp), nil
	case config.GPUMetricPower:
		usage, ret := n.device.GetPowerUsage()
		if !isNVMLSuccess(ret) {
			return 0, errFactory.Wrap(ErrPowerUsageFailed, newNVMLError(ret))
		}

		return clampSample(usage / milliWattsToWatts), nil
	default:
		return 0, errFactory.WithData(ErrUnknownMetric, n.metric)
	}
}

func (n *NVML) Close() error {
	if ret := n.shutdown(); !isNVMLSuccess(ret) {
		return errors.New().Wrap(ErrNVMLShutdown, newNVMLError(ret))
	}

	return nil
}

func clampSample(v uint32) uint16 {
	if v > uint32(^uint16(0)) {
		return ^uint16(0)
	}

	return uint16(v)
}

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

func isNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
