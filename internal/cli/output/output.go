package output

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bucketdrive/backend/internal/uploader"
)

// JSON prints v as indented JSON to stdout.
func JSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// ListingTable prints one level of the remote hierarchy, folders first.
func ListingTable(listing uploader.Listing) {
	if len(listing.Folders) == 0 && len(listing.Files) == 0 {
		fmt.Println("Nothing here.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tTYPE\tID")

	for _, f := range listing.Folders {
		fmt.Fprintf(w, "%s/\t%s\tdir\t%s\n", f.Name, FormatSize(f.Size), f.ID)
	}
	for _, f := range listing.Files {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, FormatSize(f.Size), shortMIME(f.MimeType), f.ID)
	}
	w.Flush()
}

// BucketTable prints attached buckets.
func BucketTable(buckets []uploader.BucketRecord) {
	if len(buckets) == 0 {
		fmt.Println("No buckets attached.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENDPOINT\tBUCKET\tATTACHED\tID")
	for _, b := range buckets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.Name, b.Endpoint, b.BucketName, RelativeTime(b.CreatedAt), b.ID)
	}
	w.Flush()
}

// UserInfo prints user details.
func UserInfo(u uploader.User) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Email:\t%s\n", u.Email)
	fmt.Fprintf(w, "Name:\t%s %s\n", u.FirstName, u.LastName)
	fmt.Fprintf(w, "Role:\t%s\n", u.Role)
	fmt.Fprintf(w, "ID:\t%s\n", u.ID)
	w.Flush()
}

// FormatSize converts a decimal byte-count string to a human-readable
// string. Sizes are decimal strings end to end because object stores
// accept objects larger than an int64 can count.
func FormatSize(size string) string {
	n, ok := new(big.Int).SetString(size, 10)
	if !ok {
		return size
	}
	const unit = 1024
	if n.IsInt64() && n.Int64() < unit {
		return fmt.Sprintf("%d B", n.Int64())
	}

	div := new(big.Float).SetInt64(1)
	exp := -1
	limit := new(big.Int).SetInt64(unit)
	for n.Cmp(limit) >= 0 && exp < 5 {
		div.Mul(div, big.NewFloat(unit))
		limit.Mul(limit, big.NewInt(unit))
		exp++
	}
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(n), div).Float64()
	return fmt.Sprintf("%.1f %cB", value, "KMGTPE"[exp])
}

// RelativeTime formats a timestamp relative to now (e.g. "2h ago", "3d ago").
func RelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

func shortMIME(mime string) string {
	// "application/pdf" -> "pdf", "image/png" -> "png"
	parts := strings.Split(mime, "/")
	if len(parts) == 2 {
		s := parts[1]
		if idx := strings.LastIndex(s, "."); idx >= 0 {
			s = s[idx+1:]
		}
		return s
	}
	return mime
}
