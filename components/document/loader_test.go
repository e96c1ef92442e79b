package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestSplitFrontMatter(t *testing.T) {
	meta, body, err := SplitFrontMatter("---\nsource: https://www.easa.europa.eu/cs-25\ntitle: CS-25\n---\n\n# Large Aeroplanes\n")
	if err != nil {
		t.Fatal(err)
	}
	if meta["source"] != "https://www.easa.europa.eu/cs-25" || meta["title"] != "CS-25" {
		t.Errorf("unexpected meta: %v", meta)
	}
	if body != "# Large Aeroplanes\n" {
		t.Errorf("unexpected body: %q", body)
	}
	meta, body, err = SplitFrontMatter("# No front matter\n---\n")
	if err != nil || meta != nil || body != "# No front matter\n---\n" {
		t.Errorf("content without front matter must be unchanged, got %v %q %v", meta, body, err)
	}
}

func TestWriteFrontMatterRoundTrip(t *testing.T) {
	out, err := WriteFrontMatter(map[string]string{"source": "https://example.org/a"}, "# A\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "---\nsource: https://example.org/a\n---\n\n# A\n") {
		t.Errorf("unexpected rendering: %q", out)
	}
	meta, body, err := SplitFrontMatter(out)
	if err != nil || meta["source"] != "https://example.org/a" || body != "# A\n" {
		t.Errorf("round trip failed: %v %q %v", meta, body, err)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "cs25.md")
	os.WriteFile(md, []byte("---\nsource: https://www.easa.europa.eu/cs-25\n---\n\n# CS 25.571\nDamage tolerance."), 0o644)
	html := filepath.Join(dir, "ac.html")
	os.WriteFile(html, []byte("<!DOCTYPE html><html><body><h1>AC 25.571</h1><p>Fatigue evaluation.</p></body></html>"), 0o644)
	os.Mkdir(filepath.Join(dir, ".git"), 0o755)
	os.WriteFile(filepath.Join(dir, ".git", "HEAD.md"), []byte("ref"), 0o644)

	files, err := WalkDir(dir, ".MD", ".html")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expect 2 files, got %d", len(files))
	}
	loader := NewLoader()
	for _, f := range files {
		doc, err := loader.Load(context.Background(), f)
		if err != nil {
			t.Fatal(err)
		}
		switch f.Meta()["filename"] {
		case "cs25.md":
			if doc.Source() != "https://www.easa.europa.eu/cs-25" {
				t.Errorf("expect front matter source, got %s", doc.Source())
			}
			if !strings.HasPrefix(doc.String(), "# CS 25.571") {
				t.Errorf("unexpected markdown body: %q", doc.String())
			}
		case "ac.html":
			if !strings.Contains(doc.String(), "# AC 25.571") {
				t.Errorf("expect html converted to markdown, got %q", doc.String())
			}
			if doc.Title() != "ac.html" {
				t.Errorf("unexpected title: %s", doc.Title())
			}
		}
	}
}

func TestLoadUnsupported(t *testing.T) {
	f := filepath.Join(t.TempDir(), "image.png")
	os.WriteFile(f, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644)
	file, err := NewFile(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader().Load(context.Background(), file); !errors.Is(err, ErrUnsupportedMime) {
		t.Errorf("expect ErrUnsupportedMime, got %v", err)
	}
}

func TestHttpReadOnce(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "EMAR 21 Subpart J")
	}))
	defer srv.Close()
	doc, err := NewHttp(WithHttpURL(srv.URL + "/emar21"))
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		bs, err := doc.ReadAll(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if string(bs) != "EMAR 21 Subpart J" {
			t.Errorf("unexpected body: %s", bs)
		}
	}
	if hits != 1 {
		t.Errorf("expect a single fetch, got %d", hits)
	}
	if doc.ReadStatus() != ReadCompleted {
		t.Errorf("unexpected status %d", doc.ReadStatus())
	}
	if doc.Meta()["content_type"] != "text/plain" {
		t.Errorf("unexpected meta: %v", doc.Meta())
	}
}

type fakeS3 struct {
	objects map[string]string
}

func (f fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	v, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v))}, nil
}

func (f fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := new(s3.ListObjectsV2Output)
	for _, k := range []string{"jssg/", "jssg/2006.md", "jssg/2001.md", "faa/part25.md"} {
		if strings.HasPrefix(k, aws.ToString(params.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func TestListS3(t *testing.T) {
	clt := fakeS3{objects: map[string]string{"jssg/2006.md": "# JSSG-2006\nAircraft structures."}}
	docs, err := ListS3(context.Background(), clt, "corpus", "jssg/")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expect 2 objects, got %d", len(docs))
	}
	doc, err := NewLoader().Load(context.Background(), docs[0])
	if err != nil {
		t.Fatal(err)
	}
	if doc.Source() != "s3://corpus/jssg/2006.md" {
		t.Errorf("unexpected source: %s", doc.Source())
	}
	if !strings.HasPrefix(doc.String(), "# JSSG-2006") {
		t.Errorf("unexpected content: %q", doc.String())
	}
}

func TestHTML2MDParserDropsNavigation(t *testing.T) {
	page := `<html><body><nav><a href="/">Home</a></nav><main><h2>EMAR 21</h2><p>Certification of military aircraft.</p></main><footer>Contact</footer><script>track()</script></body></html>`
	var out bytes.Buffer
	if err := NewHTML2MDParser().Parse(context.Background(), bytes.NewReader([]byte(page)), &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "## EMAR 21") || !strings.Contains(got, "Certification of military aircraft.") {
		t.Errorf("expect main content, got %q", got)
	}
	for _, unwanted := range []string{"Home", "Contact", "track()"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("expect %q dropped, got %q", unwanted, got)
		}
	}
}
