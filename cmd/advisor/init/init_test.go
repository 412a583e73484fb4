package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/advisor/cmd/advisor/init"
	"github.com/papercomputeco/advisor/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "advisor-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	It("creates a .advisor directory with a default config.toml", func() {
		Expect(execute()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".advisor"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Client.Endpoint).To(Equal("http://localhost:8080/functions/v1/career-advisor"))
		Expect(cfg.Relay.Listen).To(Equal(":8080"))
		Expect(cfg.EventStream.Provider).To(Equal("nop"))
	})

	It("does not overwrite an existing config without a preset", func() {
		dir := filepath.Join(tmpDir, ".advisor")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		existing := "[client]\nendpoint = \"https://mine.example/chat\"\n"
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(existing), 0o600)).To(Succeed())

		Expect(execute()).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(existing))
	})

	Describe("--preset", func() {
		It("writes the supabase preset", func() {
			Expect(execute("--preset", "supabase")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Client.Endpoint).To(HaveSuffix("/functions/v1/career-advisor"))
			Expect(cfg.Client.Endpoint).To(HavePrefix("https://"))
		})

		It("overwrites the config when re-run with another preset", func() {
			Expect(execute("--preset", "supabase")).To(Succeed())
			Expect(execute("--preset", "local")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Client.Endpoint).To(Equal("http://localhost:8080/functions/v1/career-advisor"))
		})

		It("rejects unknown preset names without creating the directory", func() {
			err := execute("--preset", "invalid-preset")
			Expect(err).To(MatchError(ContainSubstring("unknown preset")))

			_, err = os.Stat(filepath.Join(tmpDir, ".advisor"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	Describe("--preset with remote URL", func() {
		It("fetches and writes remote config.toml", func() {
			remoteCfg := `version = 0

[client]
endpoint = "https://abc.supabase.co/functions/v1/career-advisor"
timeout = "90s"

[relay]
model = "google/gemini-2.5-pro"
`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				fmt.Fprint(w, remoteCfg)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Client.Endpoint).To(Equal("https://abc.supabase.co/functions/v1/career-advisor"))
			Expect(cfg.Client.Timeout).To(Equal("90s"))
			Expect(cfg.Relay.Model).To(Equal("google/gemini-2.5-pro"))
		})

		It("returns error for non-200 HTTP response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("HTTP 404")))
		})

		It("returns error for invalid TOML from URL", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "this is not valid toml [[[")
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(MatchError(ContainSubstring("parsing")))
		})

		It("returns error for unreachable URL", func() {
			Expect(execute("--preset", "http://127.0.0.1:1")).To(MatchError(ContainSubstring("fetching remote config")))
		})
	})
})

// loadConfig reads and parses the config.toml from the .advisor directory
// within the given base directory.
func loadConfig(baseDir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(baseDir, ".advisor", "config.toml"))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	ExpectWithOffset(1, toml.Unmarshal(data, cfg)).To(Succeed())
	return cfg
}
