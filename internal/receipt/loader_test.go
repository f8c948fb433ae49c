package receipt

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func touch(dir string, names ...string) {
	for _, name := range names {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)).To(Succeed())
	}
}

var _ = Describe("ListImages", func() {
	var (
		dir   string
		exts  []string
		paths []string
		err   error
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		exts = nil
	})

	JustBeforeEach(func() {
		paths, err = ListImages(dir, exts)
	})

	When("the directory has matching files", func() {
		BeforeEach(func() {
			touch(dir, "b.jpg", "a.jpg", "c.JPG", "notes.txt", "d.jpeg")
			Expect(os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755)).To(Succeed())
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns only exact-case .jpg files in listing order", func() {
			Expect(paths).To(Equal([]string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.jpg")}))
		})
	})

	When("several extensions are configured", func() {
		BeforeEach(func() {
			touch(dir, "a.jpg", "b.png", "c.JPG", "d.gif")
			exts = []string{".jpg", ".JPG", ".png"}
		})

		It("matches any of them", func() {
			Expect(paths).To(HaveLen(3))
		})
	})

	When("nothing matches", func() {
		BeforeEach(func() {
			touch(dir, "a.JPG", "b.txt")
		})

		It("returns ErrNoInputFiles", func() {
			Expect(errors.Is(err, ErrNoInputFiles)).To(BeTrue())
		})

		It("is an empty batch", func() {
			Expect(errors.Is(err, ErrEmptyBatch)).To(BeTrue())
		})

		It("is not a missing directory", func() {
			Expect(errors.Is(err, ErrDirectoryNotFound)).To(BeFalse())
		})
	})

	When("the directory does not exist", func() {
		BeforeEach(func() {
			dir = filepath.Join(dir, "missing")
		})

		It("returns ErrDirectoryNotFound", func() {
			Expect(errors.Is(err, ErrDirectoryNotFound)).To(BeTrue())
		})
	})

	When("the path is a file", func() {
		BeforeEach(func() {
			touch(dir, "file.jpg")
			dir = filepath.Join(dir, "file.jpg")
		})

		It("returns ErrDirectoryNotFound", func() {
			Expect(errors.Is(err, ErrDirectoryNotFound)).To(BeTrue())
		})
	})
})
