// Package g2d drives the NXP i.MX G2D 2D accelerator through its vendor
// library, libg2d.so.2, loaded at run time.
//
// # Overview
//
// The library is opened with dlopen; no C toolchain is needed to build
// programs using this package. Its exported "_G2D_VERSION" string decides
// which g2d_surface layout the library expects: releases before 6.4.11
// take 32-bit plane addresses, later ones 64-bit. The layout is chosen
// once in Open and used for every operation.
//
// # Quick Start
//
//	dev, err := g2d.Open("libg2d.so.2", g2d.WithColorspace(g2d.ColorspaceBT709))
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//
//	alloc := dmabuf.NewAllocator()
//	buf, err := alloc.Allocate(dmabuf.HeapCached, g2d.FormatRGBA8888.BufferSize(640, 480))
//	if err != nil {
//		return err
//	}
//	defer buf.Release()
//
//	dst, err := g2d.NewSurface(buf, 640, 480, g2d.FormatRGBA8888)
//	if err != nil {
//		return err
//	}
//	if err := dev.Clear(dst, color.Black, image.Rectangle{}); err != nil {
//		return err
//	}
//	if err := dev.Finish(); err != nil {
//		return err
//	}
//	pixels, err := buf.ReadAll()
//
// # Memory
//
// The accelerator addresses memory physically. Surfaces are described
// over anything implementing PhysicalMemory, normally a *dmabuf.Buffer.
// CPU access to such memory must go through the dmabuf access brackets,
// and only after Finish has returned for the operations that wrote it.
//
// # Concurrency
//
// A Device is single-owner: it has no internal locking. Clear and Blit
// queue work; Flush submits it without waiting and Finish blocks until
// it is done.
package g2d
