package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/advisor/pkg/dotdir"
)

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	// chdir moves into dir and points HOME at home until cleanup.
	chdir := func(dir, home string) {
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(func() { os.Chdir(origDir) })

		origHome := os.Getenv("HOME")
		Expect(os.Setenv("HOME", home)).To(Succeed())
		DeferCleanup(func() { os.Setenv("HOME", origHome) })
	}

	Describe("Target", func() {
		It("creates the override directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns the override dir even when a local .advisor dir exists", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".advisor"), 0o755)).To(Succeed())
			chdir(tmpDir, tmpDir)

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("prefers the local .advisor dir over the home dir", func() {
			home := filepath.Join(tmpDir, "home")
			Expect(os.MkdirAll(filepath.Join(home, ".advisor"), 0o755)).To(Succeed())
			local := filepath.Join(tmpDir, ".advisor")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			chdir(tmpDir, home)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("falls back to the home .advisor dir", func() {
			work := filepath.Join(tmpDir, "work")
			Expect(os.Mkdir(work, 0o755)).To(Succeed())
			homeDir := filepath.Join(tmpDir, ".advisor")
			Expect(os.Mkdir(homeDir, 0o755)).To(Succeed())
			chdir(work, tmpDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(homeDir))
		})

		It("returns an empty string when no directory exists", func() {
			chdir(tmpDir, tmpDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeEmpty())
		})
	})

	Describe("Ensure", func() {
		It("creates the home .advisor dir when nothing exists", func() {
			chdir(tmpDir, tmpDir)

			result, err := m.Ensure("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(tmpDir, ".advisor")))
			Expect(filepath.Join(tmpDir, ".advisor")).To(BeADirectory())
		})

		It("returns an existing dir without creating another", func() {
			local := filepath.Join(tmpDir, ".advisor")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			chdir(tmpDir, filepath.Join(tmpDir, "nohome"))

			result, err := m.Ensure("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
			Expect(filepath.Join(tmpDir, "nohome")).NotTo(BeAnExistingFile())
		})
	})
})
