package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/user"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/rmasync/cmd/util"
	"github.com/sidkik/rmasync/pkg/config"
	"github.com/sidkik/rmasync/pkg/errors"
	"github.com/sidkik/rmasync/pkg/remote"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	stdin           io.Reader = os.Stdin
	parseUserConfig           = config.ParseUserOrDefault
	getCurrentUser            = user.Current
)

var userPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.User
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the rma user configuration",
		Long: "Write the settings that would otherwise be passed on every\n" +
			"invocation to " + config.UserConfigPath + ". Settings that aren't\n" +
			"passed as flags keep their current value. The user and host are\n" +
			"prompted for if they aren't set.",
		Run: func(cmd *cobra.Command, _ []string) {
			err := SetupConfig(cliOpts, cmd.Flags().Changed("trial"))
			if err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.User, "user", "",
		"Set the account name on the server. "+
			"Optional: If not set, `rma config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Host, "host", "",
		"Set the SFTP server. "+
			"Optional: If not set, `rma config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Key, "key", "", "Set the path to the private key.")
	cmd.Flags().StringVar(&cliOpts.Prefix, "prefix", "", "Set the root of the remote tree.")
	cmd.Flags().StringVar(&cliOpts.Template, "template", "",
		"Set the remote directory layout, such as {asset_class}/{frequency}/{bucket}.")
	cmd.Flags().StringVar(&cliOpts.CacheDir, "cache-dir", "",
		"Set the directory that downloaded files are cached in.")
	cmd.Flags().StringVar(&cliOpts.KnownHosts, "known-hosts", "",
		"Set the known_hosts file used to verify the server.")
	cmd.Flags().BoolVar(&cliOpts.Trial, "trial", false,
		"Read from the trial tree rather than the production tree.")

	// Setup the commands for querying the contents of the user config.
	type getterSpec struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterSpec{
		{
			use:   "get-user",
			short: "Get the currently configured account name",
			fn:    func(cfg config.User) string { return cfg.User },
		},
		{
			use:   "get-host",
			short: "Get the currently configured SFTP server",
			fn:    func(cfg config.User) string { return cfg.Host },
		},
		{
			use:   "get-prefix",
			short: "Get the currently configured root of the remote tree",
			fn:    func(cfg config.User) string { return cfg.Prefix },
		},
		{
			use:   "get-cache-dir",
			short: "Get the currently configured cache directory",
			fn:    func(cfg config.User) string { return cfg.CacheDir },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

// SetupConfig merges cliOpts into the current config, prompts for anything
// required that's still missing, and writes the result. trialSet is whether
// cliOpts.Trial was explicitly passed.
func SetupConfig(cliOpts config.User, trialSet bool) error {
	cfg, err := generateConfig(cliOpts, trialSet)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := config.WriteUser(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func userValidationFn(name string) (string, bool) {
	if userPattern.MatchString(name) {
		return "", true
	}
	return "The user name must be non-empty, and only contain letters, " +
		"numbers, and the characters `.`, `_` and `-`.", false
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig overlays the flags onto the current config, and asks the
// user for the fields that are needed to connect.
func generateConfig(cliOpts config.User, trialSet bool) (config.User, error) {
	currConfig, err := parseUserConfig()
	if err != nil {
		currConfig = config.User{}
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg := currConfig
	overlay := []struct {
		dst *string
		src string
	}{
		{&cfg.User, cliOpts.User},
		{&cfg.Host, cliOpts.Host},
		{&cfg.Key, cliOpts.Key},
		{&cfg.Prefix, cliOpts.Prefix},
		{&cfg.Template, cliOpts.Template},
		{&cfg.CacheDir, cliOpts.CacheDir},
		{&cfg.KnownHosts, cliOpts.KnownHosts},
	}
	for _, field := range overlay {
		if field.src != "" {
			*field.dst = field.src
		}
	}
	if trialSet {
		cfg.Trial = cliOpts.Trial
	}

	var prompts []prompt
	if cliOpts.User == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the account name on the server.\n" +
				"It's also the name of the private key in ~/.ssh by default.",
			prompt:        "User",
			defaultAnswer: guessUser(),
			currAnswer:    currConfig.User,
			field:         &cfg.User,
			validationFn:  userValidationFn,
		})
	}

	if cliOpts.Host == "" {
		prompts = append(prompts, prompt{
			helpString:    "Enter the SFTP server that hosts the analytics.",
			prompt:        "Host",
			defaultAnswer: remote.DefaultHost,
			currAnswer:    currConfig.Host,
			field:         &cfg.Host,
		})
	}

	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.User{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	return cfg, nil
}

// guessUser returns the local account name if it's a valid server account
// name.
func guessUser() string {
	current, err := getCurrentUser()
	if err != nil {
		log.WithError(err).Debug("Failed to get current user")
		return ""
	}

	if _, ok := userValidationFn(current.Username); !ok {
		return ""
	}
	return current.Username
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Separate the fields with a blank line.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimSpace(choiceStr)

			// An empty response picks the recommended option.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					continue
				}
			}

			if choice == nOptions {
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp), nil
}
