package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-batch/internal/llm"
)

// mockInvoker answers by image content, or by the last prompt line when no
// image is sent, so tests can script each file
type mockInvoker struct {
	responses map[string]string
	errs      map[string]error
	requests  []llm.Request
}

func newMockInvoker() *mockInvoker {
	return &mockInvoker{
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

func (m *mockInvoker) Invoke(ctx context.Context, req llm.Request) (string, error) {
	m.requests = append(m.requests, req)
	var key string
	if req.Image != nil {
		key = string(req.Image.Data)
	} else {
		content := req.Messages[len(req.Messages)-1].Content
		key = content[strings.LastIndex(content, "\n")+1:]
	}
	if err, ok := m.errs[key]; ok {
		return "", err
	}
	if resp, ok := m.responses[key]; ok {
		return resp, nil
	}
	return "", fmt.Errorf("no response scripted for %q", key)
}

func (m *mockInvoker) Name() string { return "mock" }

func (m *mockInvoker) Close() error { return nil }

// mockObserver records progress callbacks
type mockObserver struct {
	started  []string
	finished []string
	skipped  []string
}

func (o *mockObserver) FileStarted(index, total int, name string) {
	o.started = append(o.started, fmt.Sprintf("%d/%d %s", index, total, name))
}

func (o *mockObserver) FileFinished(name string, skip *SkippedFile) {
	o.finished = append(o.finished, name)
	if skip != nil {
		o.skipped = append(o.skipped, name)
	}
}

// writeFiles creates files whose content is their own name
func writeFiles(dir string, names ...string) {
	for _, name := range names {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte(name), 0644)).To(Succeed())
	}
}

// rawLoader passes file content straight to the invoker
func rawLoader(path string) ([]byte, error) {
	return os.ReadFile(path)
}

var _ = Describe("Aggregator", func() {
	var (
		dir      string
		invoker  *mockInvoker
		observer *mockObserver
		loader   ImageLoader
		result   *BatchResult
		err      error
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		invoker = newMockInvoker()
		observer = &mockObserver{}
		loader = rawLoader
	})

	JustBeforeEach(func() {
		agg := NewAggregator(invoker, WithImageLoader(loader), WithObserver(observer))
		result, err = agg.Run(context.Background(), dir)
	})

	When("every file succeeds", func() {
		BeforeEach(func() {
			writeFiles(dir, "1.jpg", "2.jpg")
			invoker.responses["1.jpg"] = `{"登録番号":"T1","購入店":"店A","総支払額":"¥1,000","消費税額":"90"}`
			invoker.responses["2.jpg"] = "結果です: {\"登録番号\":\"T2\",\"購入店\":\"店B\",\"総支払額\":\"500円\",\"消費税額\":null}"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("records normalized rows in listing order", func() {
			Expect(result.Records).To(Equal([]Record{
				{RegistrationNumber: "T1", Merchant: "店A", Total: "1000円", Tax: "90円", FileName: "1.jpg"},
				{RegistrationNumber: "T2", Merchant: "店B", Total: "500円", Tax: Unknown, FileName: "2.jpg"},
			}))
		})

		It("counts the attempts", func() {
			Expect(result.Attempted).To(Equal(2))
			Expect(result.Skipped).To(BeEmpty())
		})

		It("sends the extraction prompt as a JSON request", func() {
			req := invoker.requests[0]
			Expect(req.System).To(Equal(SystemPrompt))
			Expect(req.Messages).To(Equal([]llm.Message{{Role: llm.RoleUser, Content: ExtractionPrompt}}))
			Expect(req.JSON).To(BeTrue())
			Expect(req.Image.MIMEType).To(Equal("image/png"))
		})

		It("notifies the observer", func() {
			Expect(observer.started).To(Equal([]string{"1/2 1.jpg", "2/2 2.jpg"}))
			Expect(observer.finished).To(Equal([]string{"1.jpg", "2.jpg"}))
		})
	})

	When("the second of three files fails extraction", func() {
		BeforeEach(func() {
			writeFiles(dir, "1.jpg", "2.jpg", "3.jpg")
			invoker.responses["1.jpg"] = `{"登録番号":"T1","購入店":"店A","総支払額":"100","消費税額":"10"}`
			invoker.errs["2.jpg"] = fmt.Errorf("calling provider: %w", &llm.Error{Provider: "mock", Kind: llm.KindRateLimited, StatusCode: 429})
			invoker.responses["3.jpg"] = `{"登録番号":"T3","購入店":"店C","総支払額":"300","消費税額":"30"}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("records files 1 and 3", func() {
			Expect(result.Records).To(HaveLen(2))
			Expect(result.Records[0].FileName).To(Equal("1.jpg"))
			Expect(result.Records[1].FileName).To(Equal("3.jpg"))
		})

		It("reports the skip of file 2", func() {
			Expect(result.Skipped).To(HaveLen(1))
			Expect(result.Skipped[0].File).To(Equal("2.jpg"))
			Expect(result.Skipped[0].Stage).To(Equal(StageExtract))
			Expect(result.Skipped[0].Reason).To(ContainSubstring("rate limit"))
			Expect(observer.skipped).To(Equal([]string{"2.jpg"}))
		})

		It("counts every attempt", func() {
			Expect(result.Attempted).To(Equal(3))
		})
	})

	When("a response has no JSON", func() {
		BeforeEach(func() {
			writeFiles(dir, "1.jpg", "2.jpg")
			invoker.responses["1.jpg"] = "I cannot read this receipt."
			invoker.responses["2.jpg"] = `{"登録番号":"T2"}`
		})

		It("skips the file at the recover stage", func() {
			Expect(result.Skipped).To(HaveLen(1))
			Expect(result.Skipped[0].Stage).To(Equal(StageRecover))
		})

		It("records the other file with unknown fields", func() {
			Expect(result.Records).To(Equal([]Record{
				{RegistrationNumber: "T2", Merchant: Unknown, Total: Unknown, Tax: Unknown, FileName: "2.jpg"},
			}))
		})
	})

	When("a file cannot be read", func() {
		BeforeEach(func() {
			writeFiles(dir, "1.jpg", "2.jpg")
			invoker.responses["2.jpg"] = `{"登録番号":"T2"}`
			loader = func(path string) ([]byte, error) {
				if filepath.Base(path) == "1.jpg" {
					return nil, errors.New("decoding image: corrupt")
				}
				return rawLoader(path)
			}
		})

		It("skips it at the read stage without calling the model", func() {
			Expect(result.Skipped).To(Equal([]SkippedFile{{File: "1.jpg", Stage: StageRead, Reason: "decoding image: corrupt"}}))
			Expect(invoker.requests).To(HaveLen(1))
		})
	})

	When("every file fails", func() {
		BeforeEach(func() {
			writeFiles(dir, "1.jpg")
			invoker.errs["1.jpg"] = &llm.Error{Provider: "mock", Kind: llm.KindAuth}
		})

		It("returns ErrNoRecords", func() {
			Expect(errors.Is(err, ErrNoRecords)).To(BeTrue())
			Expect(errors.Is(err, ErrEmptyBatch)).To(BeTrue())
		})

		It("still returns the result for reporting", func() {
			Expect(result.Attempted).To(Equal(1))
			Expect(result.Skipped).To(HaveLen(1))
		})
	})

	When("the directory has no matching files", func() {
		BeforeEach(func() {
			writeFiles(dir, "a.png")
		})

		It("returns an empty batch", func() {
			Expect(errors.Is(err, ErrNoInputFiles)).To(BeTrue())
			Expect(errors.Is(err, ErrEmptyBatch)).To(BeTrue())
		})

		It("attempts nothing", func() {
			Expect(result.Attempted).To(BeZero())
			Expect(invoker.requests).To(BeEmpty())
		})
	})
})

var _ = Describe("Aggregator with a text loader", func() {
	var (
		dir     string
		invoker *mockInvoker
		load    TextLoader
		result  *BatchResult
		err     error
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		invoker = newMockInvoker()
		writeFiles(dir, "1.json", "2.json")
		load = func(ctx context.Context, path string) (string, error) {
			if filepath.Base(path) == "2.json" {
				return "", errors.New("decoding OCR file: bad")
			}
			return "ocr:" + filepath.Base(path), nil
		}
		invoker.responses["ocr:1.json"] = `{"登録番号":"T1","購入店":"店A","総支払額":"1,000","消費税額":"90"}`
	})

	JustBeforeEach(func() {
		agg := NewAggregator(invoker, WithExtensions(".json"), WithTextLoader(load))
		result, err = agg.Run(context.Background(), dir)
	})

	It("should not return an error", func() {
		Expect(err).NotTo(HaveOccurred())
	})

	It("sends the OCR text without an image", func() {
		Expect(invoker.requests).To(HaveLen(1))
		req := invoker.requests[0]
		Expect(req.Image).To(BeNil())
		Expect(req.System).To(Equal(SystemPrompt))
		Expect(req.JSON).To(BeTrue())
		Expect(req.Messages[0].Content).To(Equal(TextPrompt("ocr:1.json")))
		Expect(req.Messages[0].Content).To(HavePrefix(ExtractionPrompt))
	})

	It("records the extracted receipt", func() {
		Expect(result.Records).To(Equal([]Record{
			{RegistrationNumber: "T1", Merchant: "店A", Total: "1000円", Tax: "90円", FileName: "1.json"},
		}))
	})

	It("skips an unreadable file at the read stage", func() {
		Expect(result.Skipped).To(Equal([]SkippedFile{{File: "2.json", Stage: StageRead, Reason: "decoding OCR file: bad"}}))
	})
})

var _ = Describe("Aggregator cancellation", func() {
	It("stops before the next file", func() {
		dir := GinkgoT().TempDir()
		writeFiles(dir, "1.jpg")
		invoker := newMockInvoker()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := NewAggregator(invoker, WithImageLoader(rawLoader)).Run(ctx, dir)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(result.Attempted).To(BeZero())
	})
})
