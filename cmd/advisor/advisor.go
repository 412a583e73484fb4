// Package advisorcmder
package advisorcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/advisor/cmd/advisor/chat"
	configcmder "github.com/papercomputeco/advisor/cmd/advisor/config"
	initcmder "github.com/papercomputeco/advisor/cmd/advisor/init"
	servecmder "github.com/papercomputeco/advisor/cmd/advisor/serve"
	versioncmder "github.com/papercomputeco/advisor/cmd/version"
)

const advisorLongDesc string = `Advisor is a streaming career-advisor chat client for students.

Ask about streams after 10th, entrance exams, colleges and careers, and read
the answer as it is written:
  advisor chat                 Start an interactive conversation
  advisor ask <question>       Ask a single question
  advisor serve                Run the career-advisor relay

The chat endpoint and its credential are read from config.toml in the
.advisor/ directory, or from ADVISOR_CLIENT_ENDPOINT and
ADVISOR_CLIENT_CREDENTIAL.`

const advisorShortDesc string = "Advisor - streaming career guidance"

func NewAdvisorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "advisor",
		Short:        advisorShortDesc,
		Long:         advisorLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .advisor/ config directory")

	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(chatcmder.NewAskCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
