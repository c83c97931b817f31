//go:build js && wasm

package main

import (
	"fmt"
	"image"
	"syscall/js"

	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorCorruptFingerprint
)

// hashFrame hashes one grayscale frame and returns its packed hex hash.
// Args: grayPixels (Uint8Array or Array, row-major), width, height.
// Returns: {error: number, data: string}
func hashFrame(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: grayPixels, width, height")
	}
	pixelsJS, widthJS, heightJS := args[0], args[1], args[2]

	if pixelsJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "grayPixels must be a Uint8Array or Array")
	}
	if widthJS.Type() != js.TypeNumber || heightJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "width and height must be numbers")
	}

	width, height := widthJS.Int(), heightJS.Int()
	if width <= 0 || height <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid frame size: %dx%d", width, height))
	}
	if n := pixelsJS.Length(); n != width*height {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("grayPixels has %d values, want %d", n, width*height))
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	if pixelsJS.InstanceOf(js.Global().Get("Uint8Array")) || pixelsJS.InstanceOf(js.Global().Get("Uint8ClampedArray")) {
		js.CopyBytesToGo(img.Pix, pixelsJS)
	} else {
		for i := range img.Pix {
			v := pixelsJS.Index(i)
			if v.Type() != js.TypeNumber {
				return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("grayPixels element %d is not a number", i))
			}
			img.Pix[i] = uint8(v.Int())
		}
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", fingerprint.NewPHasher().Hash(img).String())
	return result
}

// similarity scores two packed fingerprints in [0, 100].
// Returns: {error: number, data: number}
func similarity(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 2 arguments: packedA, packedB")
	}
	if args[0].Type() != js.TypeString || args[1].Type() != js.TypeString {
		return makeErrorResponse(ErrorInvalidArgs, "fingerprints must be hex strings")
	}

	a, err := fingerprint.Unpack(args[0].String())
	if err != nil {
		return makeErrorResponse(ErrorCorruptFingerprint, fmt.Sprintf("first fingerprint: %v", err))
	}
	b, err := fingerprint.Unpack(args[1].String())
	if err != nil {
		return makeErrorResponse(ErrorCorruptFingerprint, fmt.Sprintf("second fingerprint: %v", err))
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", fingerprint.Similarity(a, b))
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")

	js.Global().Set("visualdnaHashFrame", js.FuncOf(hashFrame))
	js.Global().Set("visualdnaSimilarity", js.FuncOf(similarity))

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "VisualDNA WASM: window object is undefined")
	}

	if !console.IsUndefined() {
		console.Call("log", "VisualDNA WASM module loaded")
	}

	select {}
}
