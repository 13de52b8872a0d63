package main

import (
	"github.com/fogleman/gg"
	"github.com/spf13/cobra"

	"gopherberry/kernel/mm"
	"gopherberry/kernel/mm/pmm"
)

const (
	cellSize     = 12
	gridColumns  = 32
	legendHeight = 24
)

var (
	outPath string
	live    bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Run a random workload and draw the region map as a PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := simulate(cmd.OutOrStdout(), !live)
		if err != nil {
			return err
		}
		defer m.release()

		return renderRegions(&m.mem.Frames, outPath)
	},
}

func init() {
	renderCmd.Flags().StringVar(&outPath, "out", "regions.png", "Output PNG file")
	renderCmd.Flags().BoolVar(&live, "live", false, "Draw the map before releasing the workload allocations")
	rootCmd.AddCommand(renderCmd)
}

// renderRegions draws one cell per region: free regions are green, full
// regions red and divided regions are filled in proportion to their
// allocated frames.
func renderRegions(frames *pmm.FrameAllocator, path string) error {
	var count int
	frames.VisitRegions(func(mm.Region, pmm.RegionState, uintptr) { count++ })

	rows := (count + gridColumns - 1) / gridColumns
	dc := gg.NewContext(gridColumns*cellSize, rows*cellSize+legendHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	frames.VisitRegions(func(r mm.Region, state pmm.RegionState, free uintptr) {
		x := float64(int(r)%gridColumns) * cellSize
		y := float64(int(r)/gridColumns) * cellSize

		switch state {
		case pmm.RegionFree:
			dc.SetRGB(0.55, 0.8, 0.55)
			dc.DrawRectangle(x, y, cellSize, cellSize)
			dc.Fill()
		case pmm.RegionFull:
			dc.SetRGB(0.85, 0.35, 0.3)
			dc.DrawRectangle(x, y, cellSize, cellSize)
			dc.Fill()
		default:
			used := float64(mm.FramesPerRegion-free) / float64(mm.FramesPerRegion)
			dc.SetRGB(0.55, 0.8, 0.55)
			dc.DrawRectangle(x, y, cellSize, cellSize)
			dc.Fill()
			dc.SetRGB(0.95, 0.7, 0.25)
			dc.DrawRectangle(x, y+cellSize*(1-used), cellSize, cellSize*used)
			dc.Fill()
		}

		dc.SetRGB(1, 1, 1)
		dc.SetLineWidth(1)
		dc.DrawRectangle(x, y, cellSize, cellSize)
		dc.Stroke()
	})

	dc.SetRGB(0, 0, 0)
	dc.DrawString("free / divided / full regions", 4, float64(rows*cellSize)+legendHeight-8)

	return dc.SavePNG(path)
}
