package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestDecodeImagePNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	src.Set(1, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	img, err := DecodeImage(&buf)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if img.Width != 2 || img.Height != 3 {
		t.Fatalf("size = %dx%d, want 2x3", img.Width, img.Height)
	}
	if len(img.Pixels) != 2*3*4 {
		t.Fatalf("expected %d pixel bytes, got %d", 2*3*4, len(img.Pixels))
	}
	off := (2*2 + 1) * 4
	if got := img.Pixels[off : off+4]; !bytes.Equal(got, []byte{10, 20, 30, 255}) {
		t.Errorf("pixel (1,2) = %v", got)
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("expected an error for garbage input")
	}
}

func TestMipChainHalvesEachLevel(t *testing.T) {
	img := SolidImage(300, 300, [4]byte{255, 0, 255, 255})
	levels := MipLevels(img.Width, img.Height)

	chain := img.MipChain(levels)
	if uint32(len(chain)) != levels {
		t.Fatalf("expected %d levels, got %d", levels, len(chain))
	}

	wantSizes := []uint32{300, 150, 75, 37, 18, 9, 4, 2}
	for i, lvl := range chain {
		if lvl.Width != wantSizes[i] || lvl.Height != wantSizes[i] {
			t.Errorf("level %d: %dx%d, want %dx%d", i, lvl.Width, lvl.Height, wantSizes[i], wantSizes[i])
		}
		if len(lvl.Pixels) != int(lvl.Width*lvl.Height*4) {
			t.Errorf("level %d: %d pixel bytes", i, len(lvl.Pixels))
		}
	}

	last := chain[len(chain)-1]
	if !bytes.Equal(last.Pixels[:4], []byte{255, 0, 255, 255}) {
		t.Errorf("solid colour not preserved: %v", last.Pixels[:4])
	}
}
