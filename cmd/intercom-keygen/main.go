// Command intercom-keygen is the provisioning-side counterpart of cmd/intercom-peripheral and
// cmd/intercom-unlock: it generates the long-lived key material each protocol variant needs
// (a Variant A P-256 identity key, a Variant B/Symmetric-Key site master key, per-device
// diversified keys) and issues Variant A credentials. Built on cobra's command tree rather than
// the teacher's flag+flag.Arg(0) dispatch in cmd/tesla-keygen, since a tool with several
// unrelated subcommands (identity keys, master keys, credential issuance, attestation) is exactly
// the shape cobra is for.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "intercom-keygen",
		Short: "Generate and manage intercom key material and credentials",
	}
	root.AddCommand(
		newGenerateIdentityKeyCmd(),
		newGenerateMasterKeyCmd(),
		newDiversifyCmd(),
		newIssueCredentialCmd(),
		newAttestCmd(),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
