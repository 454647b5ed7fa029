// Command inbox_watcher bulk-digitizes a directory of receipt images:
// each image runs through the digitization pipeline and becomes an Upload
// plus a draft Expense attributed to the given user. With -watch it keeps
// running and picks up files as they are dropped in.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cleaneradmin/models"
	"cleaneradmin/pkg/receipt"
)

var verbose bool

var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

func main() {
	dirFlag := flag.String("dir", "inbox", "directory to scan for receipt images")
	userFlag := flag.String("user", "admin", "username to attribute expenses to")
	dryRun := flag.Bool("dry-run", false, "run the pipeline and print results without touching the DB")
	watch := flag.Bool("watch", false, "watch directory for new files")
	workers := flag.Int("workers", 2, "worker pool size")
	flag.BoolVar(&verbose, "verbose", false, "verbose per-file logging")
	flag.Parse()

	_ = godotenv.Load()

	var db *gorm.DB
	var userID uint
	if !*dryRun {
		db = mustInitDBFromEnv()
		var user models.User
		if err := db.Where("username = ?", *userFlag).First(&user).Error; err != nil {
			log.Fatalf("user %q not found: %v", *userFlag, err)
		}
		userID = user.ID
	}

	files := listImageFiles(*dirFlag)
	log.Printf("Found %d candidate files in %s", len(files), *dirFlag)

	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// one pipeline per worker: each serializes its own submissions
			pipe := receipt.NewPipeline(
				&receipt.TesseractRecognizer{Lang: os.Getenv("OCR_LANG")},
				receipt.NotifierFunc(func(msg string) { log.Printf("notice: %s", msg) }),
			)
			for name := range fileCh {
				processSingleFile(db, pipe, *dirFlag, name, userID, *dryRun)
			}
		}()
	}
	for _, f := range files {
		fileCh <- f
	}

	if *watch {
		if err := watchDirectory(*dirFlag, fileCh); err != nil {
			log.Fatalf("watch: %v", err)
		}
	}
	close(fileCh)
	wg.Wait()
}

func processSingleFile(db *gorm.DB, pipe *receipt.Pipeline, dir, name string, userID uint, dryRun bool) {
	full := filepath.Join(dir, name)
	if db != nil {
		var existing models.Upload
		if err := db.Where("user_id = ? AND file_name = ?", userID, name).First(&existing).Error; err == nil {
			if verbose {
				log.Printf("skip %s: already ingested", name)
			}
			return
		}
	}

	f, err := os.Open(full)
	if err != nil {
		log.Printf("open %s: %v", name, err)
		return
	}
	st := receipt.NewState()
	ok := pipe.Process(context.Background(), f, st)
	_ = f.Close()

	total, business := st.Finalize()
	if verbose || dryRun {
		log.Printf("%s: ok=%v items=%d total=%s business=%s",
			name, ok, len(st.Items()), receipt.FormatPence(total), receipt.FormatPence(business))
	}
	if dryRun || db == nil {
		return
	}

	info, _ := os.Stat(full)
	date := time.Now()
	if info != nil {
		date = info.ModTime()
	}
	up := models.Upload{
		UserID:      userID,
		FileName:    name,
		StorePath:   "public/" + filepath.ToSlash(filepath.Join("inbox", name)),
		ContentType: extMime[strings.ToLower(filepath.Ext(name))],
	}
	if err := db.Create(&up).Error; err != nil {
		log.Printf("upload row for %s: %v", name, err)
		return
	}
	exp := models.Expense{
		UserID:          userID,
		Date:            date,
		Merchant:        merchantFromFilename(name),
		Category:        "Supplies",
		Total:           total,
		BusinessPortion: business,
		Note:            "imported from inbox",
		ReceiptURL:      up.StorePath,
	}
	if err := db.Create(&exp).Error; err != nil {
		log.Printf("expense row for %s: %v", name, err)
		return
	}
	db.Model(&up).Update("expense_id", exp.ID)
	log.Printf("ingested %s -> expense %d (total %s)", name, exp.ID, receipt.FormatPence(total))
}

// merchantFromFilename turns "tesco-2026-08-12.jpg" into "tesco 2026 08 12".
func merchantFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	m := receipt.CleanLabel(base)
	if m == "" {
		m = "Unknown"
	}
	return m
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

// watchDirectory forwards newly created image files to fileCh, debounced so a
// file still being copied in is not picked up half-written.
func watchDirectory(dir string, fileCh chan<- string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				name := filepath.Base(ev.Name)
				if isSupportedExt(name) {
					pending[name] = time.Now()
				}
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > 300*time.Millisecond { // stable
					fileCh <- name
					delete(pending, name)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

func isSupportedExt(name string) bool {
	_, ok := extMime[strings.ToLower(filepath.Ext(name))]
	return ok
}
