// Package scorer implements lexical valence scoring of text fragments.
//
// Scoring is a pure function: token valences from an embedded lexicon are
// combined with negation and intensity handling, then normalized into
// [-1, 1]. Phrases that signal acute distress floor the score regardless of
// the lexicon sum. Anything unscorable degrades to the neutral score 0.
package scorer
