package e2e_test

import (
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsonflat/internal/converter"
)

// generateNestedJSON creates a deeply nested JSON structure for benchmarking
func generateNestedJSON(depth int, width int) map[string]interface{} {
	if depth <= 0 {
		return map[string]interface{}{
			"leaf_value": "data",
			"timestamp":  time.Now().Format(time.RFC3339),
			"count":      rand.Intn(100),
			"enabled":    rand.Intn(2) == 1,
		}
	}

	result := make(map[string]interface{})
	for i := 0; i < width; i++ {
		key := fmt.Sprintf("nested_%d_%d", depth, i)
		result[key] = generateNestedJSON(depth-1, width)
	}
	return result
}

// generateWideJSON creates a JSON object with many fields at the same level
func generateWideJSON(fieldCount int) map[string]interface{} {
	result := make(map[string]interface{})

	for i := 0; i < fieldCount; i++ {
		switch i % 5 {
		case 0:
			result[fmt.Sprintf("string_field_%d", i)] = fmt.Sprintf("value, %d", i)
		case 1:
			result[fmt.Sprintf("int_field_%d", i)] = i
		case 2:
			result[fmt.Sprintf("bool_field_%d", i)] = i%2 == 0
		case 3:
			result[fmt.Sprintf("float_field_%d", i)] = float64(i) + 0.5
		case 4:
			result[fmt.Sprintf("list_field_%d", i)] = []map[string]interface{}{
				{"id": i, "name": fmt.Sprintf("Object %d", i)},
				{"id": i + 1, "name": fmt.Sprintf("Object %d", i+1)},
			}
		}
	}

	return result
}

// benchmarkConvert measures an in-process conversion of value
func benchmarkConvert(b *testing.B, value interface{}) {
	data, err := json.Marshal(value)
	require.NoError(b, err)

	conv := converter.New(nil)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := conv.ConvertBytes(data, "bench.json", converter.Hooks{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDeepNesting benchmarks performance with deeply nested JSON structures
func BenchmarkDeepNesting(b *testing.B) {
	depths := []struct {
		name  string
		depth int
		width int
	}{
		{"Depth3Width3", 3, 3},   // Moderate nesting
		{"Depth5Width2", 5, 2},   // Deep nesting
		{"Depth2Width10", 2, 10}, // Wide but shallow
	}

	for _, depth := range depths {
		b.Run(depth.name, func(b *testing.B) {
			benchmarkConvert(b, generateNestedJSON(depth.depth, depth.width))
		})
	}
}

// BenchmarkWideStructures benchmarks performance with many fields and arrays per record
func BenchmarkWideStructures(b *testing.B) {
	widths := []struct {
		name       string
		fieldCount int
	}{
		{"Fields10", 10},
		{"Fields100", 100},
		{"Fields1000", 1000},
	}

	for _, width := range widths {
		b.Run(width.name, func(b *testing.B) {
			benchmarkConvert(b, generateWideJSON(width.fieldCount))
		})
	}
}

// BenchmarkArrayProcessing benchmarks performance with large arrays
func BenchmarkArrayProcessing(b *testing.B) {
	sizes := []struct {
		name      string
		arraySize int
	}{
		{"Array100", 100},
		{"Array1000", 1000},
		{"Array5000", 5000},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			array := make([]map[string]interface{}, size.arraySize)
			for i := 0; i < size.arraySize; i++ {
				array[i] = map[string]interface{}{
					"id":       i,
					"name":     fmt.Sprintf("Item %d", i),
					"value":    rand.Float64() * 100,
					"active":   i%2 == 0,
					"category": map[string]interface{}{"code": i % 5, "label": fmt.Sprintf("Category %d", i%5)},
				}
			}
			benchmarkConvert(b, array)
		})
	}
}

// BenchmarkLargeJSON benchmarks the CLI end to end with large JSON files
func BenchmarkLargeJSON(b *testing.B) {
	if testing.Short() {
		b.Skip("skipping benchmark in short mode")
	}

	tempDir := b.TempDir()

	sizes := []struct {
		name      string
		itemCount int
	}{
		{"100Items", 100},
		{"1000Items", 1000},
		{"10000Items", 10000},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			jsonFile := filepath.Join(tempDir, fmt.Sprintf("%s.json", size.name))
			generateLargeJSON(b, jsonFile, size.itemCount)
			outputFile := filepath.Join(tempDir, fmt.Sprintf("%s.csv", size.name))

			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				cmd := exec.Command("go", "run", "../../main.go", jsonFile, "-o", outputFile)
				output, err := cmd.CombinedOutput()
				require.NoError(b, err, "CLI command failed: %s", string(output))

				_, err = os.Stat(outputFile)
				require.NoError(b, err, "Output file was not created")
				_ = os.Remove(outputFile)
			}
		})
	}
}
