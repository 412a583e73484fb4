package advisorcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	advisorcmder "github.com/papercomputeco/advisor/cmd/advisor"
)

var _ = Describe("NewAdvisorCmd", func() {
	It("registers every subcommand", func() {
		cmd := advisorcmder.NewAdvisorCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("chat", "ask", "serve", "config", "init", "version"))
	})

	It("has the global flags", func() {
		cmd := advisorcmder.NewAdvisorCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("passes --config-dir through to subcommands", func() {
		dir := filepath.Join(GinkgoT().TempDir(), "cfg")

		cmd := advisorcmder.NewAdvisorCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--config-dir", dir, "config", "set", "relay.model", "test-model"})
		Expect(cmd.Execute()).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`model = "test-model"`))
	})
})
