package main

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// modelcheck verifies that ONNX Runtime can load the detector models and
// prints their input/output metadata.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: modelcheck <model.onnx> [more models...]")
		fmt.Println("\nVerifies that ONNX Runtime can load the given models.")
		fmt.Println("\nExample:")
		fmt.Println("  modelcheck models/scrfd_10g.onnx models/2d106det.onnx")
		os.Exit(1)
	}

	if lib := os.Getenv("DERMASCAN_ONNX_LIBRARY"); lib != "" {
		ort.SetSharedLibraryPath(lib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		fmt.Printf("Failed to initialize ONNX Runtime: %v\n", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	failed := false
	for _, modelPath := range os.Args[1:] {
		if err := inspect(modelPath); err != nil {
			fmt.Printf("FAIL %s: %v\n", modelPath, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func inspect(modelPath string) error {
	if _, err := os.Stat(modelPath); err != nil {
		return err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return err
	}

	fmt.Printf("OK %s\n", modelPath)
	for _, info := range inputs {
		fmt.Printf("  input  %-12s %v\n", info.Name, info.Dimensions)
	}
	for _, info := range outputs {
		fmt.Printf("  output %-12s %v\n", info.Name, info.Dimensions)
	}
	return nil
}
