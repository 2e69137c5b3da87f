package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/user"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/rmasync/pkg/config"
)

func TestPromptUser(t *testing.T) {
	tests := []struct {
		name                                                 string
		helpString, prompt, defaultAnswer, currAnswer, stdin string
		expPrompt, expResult                                 string
	}{
		{
			name:          "No default or current answer",
			helpString:    "explanation",
			prompt:        "prompt",
			defaultAnswer: "",
			currAnswer:    "",
			stdin:         "user input\n",
			expPrompt: "explanation\n" +
				"prompt:\n" +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "No default answer only, chose current answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "",
			currAnswer:    "current answer",
			stdin:         "1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. current answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n",
			expResult: "current answer",
		},
		{
			name:          "No default answer only, enter manually",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "",
			currAnswer:    "current answer",
			stdin: "2\n" +
				"user input\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. current answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: " +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "No current answer only, chose default answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "",
			stdin:         "1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n",
			expResult: "default answer",
		},
		{
			name:          "No current answer only, enter manually",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "",
			stdin: "2\n" +
				"user input\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: " +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "Same default answer and current answer, chose default answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "default answer",
			stdin:         "1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n",
			expResult: "default answer",
		},
		{
			name:          "Same default answer and current answer, enter manually",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "default answer",
			stdin: "2\n" +
				"user input",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: " +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "Different default answer and current answer, chose default answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin:         "1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expResult: "default answer",
		},
		{
			name:          "Empty response -- pick default",
			helpString:    "help",
			prompt:        "prompt",
			defaultAnswer: "one",
			currAnswer:    "two",
			stdin:         "\n",
			expPrompt: "help\n" +
				"prompt:\n" +
				"\n" +
				"\t1. one (recommended)\n" +
				"\t2. two\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expResult: "one",
		},
		{
			name:          "Different default answer and current answer, chose current answer",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin:         "2\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expResult: "current answer",
		},
		{
			name:          "Different default answer and current answer, enter manually",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin: "3\n" +
				"user input\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: " +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "Invalid input",
			helpString:    "different explanation",
			prompt:        "different prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin: "invalid input\n" +
				"1\n",
			expPrompt: "different explanation\n" +
				"different prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: " +
				"Please choose one [1-3]: \n",
			expResult: "default answer",
		},
	}

	type promptUserResult struct {
		resp string
		err  error
	}
	for _, test := range tests {
		// Setup mocks.
		out := bytes.NewBuffer(nil)
		stdinReader, stdinWriter := io.Pipe()
		stdout = out
		stdin = stdinReader

		// Start the promptUser function.
		resultChan := make(chan promptUserResult)
		go func() {
			resp, err := promptUser(test.helpString, test.prompt,
				test.defaultAnswer, test.currAnswer)
			resultChan <- promptUserResult{resp, err}
		}()

		// Provide the user input.
		fmt.Fprintln(stdinWriter, test.stdin)

		// Check that promptUser behaved as expected.
		result := <-resultChan
		assert.NoError(t, result.err, test.name)
		assert.Equal(t, test.expResult, result.resp, test.name)

		// Test the prompt after `promptUser` has exited so that we can be sure
		// we're not testing before `promptUser` has a chance to print to stdout.
		assert.Equal(t, test.expPrompt, out.String(), test.name)
	}
}

func TestUserValidation(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"alice", true},
		{"alice.smith-2_b", true},
		{"", false},
		{"alice smith", false},
		{"../alice", false},
		{"alice@host", false},
	}

	for _, test := range tests {
		msg, ok := userValidationFn(test.input)
		assert.Equal(t, test.valid, ok, test.input)
		assert.Equal(t, test.valid, msg == "", test.input)
	}
}

func TestGenerateConfig(t *testing.T) {
	current := config.User{
		User:   "alice",
		Host:   "sftp.example.com",
		Prefix: "/MI4",
		Trial:  true,
	}

	tests := []struct {
		name        string
		cliOpts     config.User
		trialSet    bool
		currentUser *user.User
		stdin       string
		exp         config.User
	}{
		{
			name: "FlagsOverride",
			cliOpts: config.User{
				User:     "bob",
				Host:     "other.example.com",
				Prefix:   "/PRO",
				CacheDir: "/tmp/cache",
			},
			trialSet: true,
			exp: config.User{
				User:     "bob",
				Host:     "other.example.com",
				Prefix:   "/PRO",
				CacheDir: "/tmp/cache",
			},
		},
		{
			name:        "ChooseCurrentUser",
			cliOpts:     config.User{Host: "sftp.example.com"},
			currentUser: &user.User{Username: "bob"},
			stdin:       "2\n",
			exp:         current,
		},
		{
			name:        "RetryInvalidUser",
			cliOpts:     config.User{Host: "sftp.example.com"},
			currentUser: &user.User{Username: "bob"},
			stdin:       "3\nnot valid\n3\ncarol\n",
			exp: config.User{
				User:   "carol",
				Host:   "sftp.example.com",
				Prefix: "/MI4",
				Trial:  true,
			},
		},
		{
			name:    "PromptHost",
			cliOpts: config.User{User: "alice"},
			stdin:   "1\n",
			exp: config.User{
				User:   "alice",
				Host:   "sftp.news.refinitiv.com",
				Prefix: "/MI4",
				Trial:  true,
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			parseUserConfig = func() (config.User, error) { return current, nil }
			getCurrentUser = func() (*user.User, error) {
				if test.currentUser == nil {
					return nil, errors.New("unknown user")
				}
				return test.currentUser, nil
			}
			stdout = bytes.NewBuffer(nil)

			// promptUser reuses the reader when it's already buffered, so
			// input for later prompts isn't lost.
			stdin = bufio.NewReader(strings.NewReader(test.stdin))

			cfg, err := generateConfig(test.cliOpts, test.trialSet)
			require.NoError(t, err)
			assert.Equal(t, test.exp, cfg)
		})
	}
}

func TestGenerateConfigNoInput(t *testing.T) {
	parseUserConfig = func() (config.User, error) { return config.User{}, errors.New("bad config") }
	getCurrentUser = func() (*user.User, error) { return &user.User{Username: "bob"}, nil }
	stdout = bytes.NewBuffer(nil)
	stdin = strings.NewReader("")

	_, err := generateConfig(config.User{}, false)
	assert.Error(t, err)
}

func TestGuessUser(t *testing.T) {
	getCurrentUser = func() (*user.User, error) { return &user.User{Username: "alice"}, nil }
	assert.Equal(t, "alice", guessUser())

	getCurrentUser = func() (*user.User, error) { return &user.User{Username: "DOMAIN\\alice"}, nil }
	assert.Equal(t, "", guessUser())

	getCurrentUser = func() (*user.User, error) { return nil, errors.New("unknown") }
	assert.Equal(t, "", guessUser())
}
