// Copyright 2026 Strata ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the raw tensor representation shared by every
// layer, updater and backend in Strata.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32() // type-safe view of the buffer
package tensor

import "github.com/strata-ml/strata/internal/tensor"

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType identifies the element type of a tensor buffer.
type DataType = tensor.DataType

// Supported element types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Float16 = tensor.Float16
)

// Device identifies where a tensor's buffer lives.
type Device = tensor.Device

// Supported devices.
const (
	CPU  = tensor.CPU
	CUDA = tensor.CUDA
)

// RawTensor is the low-level tensor representation: a typed buffer with a
// shape, row-major strides and a device.
type RawTensor = tensor.RawTensor

// ReduceKind selects the reduction a pooling operation applies over each
// window.
type ReduceKind = tensor.ReduceKind

// Supported reductions.
const (
	ReduceMax = tensor.ReduceMax
	ReduceSum = tensor.ReduceSum
)

// NewRaw allocates a zeroed tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// MustNewRaw is NewRaw for shapes known to be valid; it panics on error.
func MustNewRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	return tensor.MustNewRaw(shape, dtype, device)
}
