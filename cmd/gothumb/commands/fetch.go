package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/datallboy/gothumb/internal/domain"
	"github.com/datallboy/gothumb/internal/engine"
)

var (
	fetchOut     string
	fetchTimeout time.Duration
)

var fetchCmd = &cobra.Command{
	Use:   "fetch URL...",
	Short: "Fetch images once through the worker and cache",
	Long: `Queue every URL as a download, wait for the worker to go idle and write
each delivered image into the output directory.

Examples:
  gothumb fetch https://example.com/a.jpg s3://covers/b.png --out ./thumbs`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", ".", "Directory to write fetched images to")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 2*time.Minute, "Give up waiting after this long")
}

type fetchResult struct {
	url  string
	img  *domain.Image
	file string
}

func runFetch(cmd *cobra.Command, urls []string) error {
	appCtx, err := bootstrap()
	if err != nil {
		return err
	}
	defer appCtx.Logger.Sync()

	if err := os.MkdirAll(fetchOut, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	if err := appCtx.Build(ctx); err != nil {
		return err
	}
	d := appCtx.Thumbnails

	results := make([]fetchResult, len(urls))
	var mu sync.Mutex
	d.SetListener(func(handle string, img *domain.Image) {
		i, _ := strconv.Atoi(handle)
		mu.Lock()
		results[i].img = img
		mu.Unlock()
	})

	for i, url := range urls {
		results[i].url = url
		if err := d.QueueDownload(strconv.Itoa(i), url); err != nil {
			return err
		}
	}
	if err := d.Start(ctx); err != nil {
		return err
	}

	waitIdle(ctx, d)

	// Stop drains deliveries still waiting on the callback context
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := appCtx.Close(stopCtx); err != nil {
		return err
	}

	failed := 0
	for i := range results {
		r := &results[i]
		if r.img == nil {
			failed++
			continue
		}
		r.file = filepath.Join(fetchOut, domain.URLKey(r.url)[:16]+"."+r.img.Format)
		if err := os.WriteFile(r.file, r.img.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", r.file, err)
		}
	}

	printResults(cmd.OutOrStdout(), results)
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(urls))
	}
	return nil
}

func waitIdle(ctx context.Context, d *engine.Dispatcher[string]) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		st := d.Stats()
		if st.Queued == 0 && st.ActiveURL == "" {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printResults(w io.Writer, results []fetchResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"URL", "Status", "Size", "Bytes", "File"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, r := range results {
		if r.img == nil {
			table.Append([]string{r.url, "failed", "-", "-", "-"})
			continue
		}
		table.Append([]string{
			r.url,
			"ok",
			fmt.Sprintf("%dx%d", r.img.Width, r.img.Height),
			humanize.IBytes(uint64(len(r.img.Data))),
			r.file,
		})
	}
	table.Render()
}
