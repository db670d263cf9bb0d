// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package features provides the multi-scale visual feature extractor:
// a ResNet-style backbone followed by a Feature Pyramid Network.
//
// # Overview
//
// The backbone (stem + BasicBlock/Bottleneck stages) turns an NHWC image
// batch into feature maps at increasing strides. The FPN projects every
// level to a common width, fuses coarse levels into finer ones top-down and
// smooths each result. Every pyramid level keeps the resolution of its input.
//
// # Basic Usage
//
//	backend := cpu.New()
//	rng := rand.New(rand.NewSource(1))
//
//	ex, err := features.NewDefault(rng, backend)
//	if err != nil {
//	    return err
//	}
//
//	x := tensor.Zeros[float32](tensor.Shape{2, 96, 96, 3}, backend)
//	pyr, err := ex.Forward(ctx, x)
//	// pyr.Shapes(): [2 32 32 128] [2 16 16 128] [2 8 8 128]
//
// # Configuration
//
// LoadConfig reads a YAML file; Build turns its model section into an
// Extractor. Invalid configurations are rejected at construction with
// errors matching ErrConfig or ErrUnsupportedFeature.
package features
