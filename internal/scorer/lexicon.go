package scorer

// lexicon maps lowercase tokens to raw valence on a -4..+4 scale, the same
// scale the VADER lexicon uses. The normalization in Score brings weighted
// sums into [-1, 1].
var lexicon = map[string]float64{
	// positive
	"good":       1.9,
	"great":      3.1,
	"nice":       1.8,
	"fine":       0.8,
	"okay":       0.9,
	"ok":         0.9,
	"happy":      2.7,
	"happier":    2.8,
	"happiness":  2.9,
	"joy":        2.8,
	"joyful":     2.9,
	"glad":       2.0,
	"love":       3.2,
	"loved":      2.9,
	"lovely":     2.8,
	"like":       1.5,
	"liked":      1.6,
	"wonderful":  2.7,
	"amazing":    2.8,
	"awesome":    3.1,
	"fantastic":  2.6,
	"excellent":  2.7,
	"perfect":    2.7,
	"beautiful":  2.9,
	"excited":    2.3,
	"exciting":   2.2,
	"thrilled":   2.9,
	"fun":        2.3,
	"funny":      1.9,
	"laugh":      2.3,
	"laughed":    2.2,
	"smile":      2.0,
	"smiled":     2.0,
	"proud":      2.2,
	"hope":       1.9,
	"hopeful":    2.3,
	"better":     1.9,
	"best":       3.2,
	"win":        2.8,
	"won":        2.7,
	"success":    2.7,
	"successful": 2.8,
	"thanks":     1.9,
	"thankful":   2.7,
	"grateful":   3.1,
	"relaxed":    2.2,
	"calm":       1.3,
	"peaceful":   2.4,
	"friend":     2.2,
	"friends":    2.2,
	"enjoy":      2.2,
	"enjoyed":    2.3,
	"delighted":  2.9,
	"relieved":   2.1,

	// negative
	"bad":           -2.5,
	"worse":         -2.1,
	"worst":         -3.1,
	"sad":           -2.1,
	"sadder":        -2.2,
	"sadness":       -2.3,
	"unhappy":       -1.8,
	"depressed":     -2.2,
	"depressing":    -1.9,
	"depression":    -2.7,
	"miserable":     -2.7,
	"terrible":      -2.1,
	"horrible":      -2.5,
	"awful":         -2.0,
	"hate":          -2.7,
	"hated":         -3.2,
	"hates":         -1.9,
	"angry":         -2.3,
	"anger":         -2.7,
	"furious":       -2.9,
	"mad":           -2.3,
	"annoyed":       -1.8,
	"annoying":      -1.7,
	"frustrated":    -2.1,
	"frustrating":   -2.0,
	"cry":           -2.0,
	"crying":        -2.1,
	"cried":         -2.1,
	"tears":         -1.6,
	"hurt":          -2.3,
	"hurts":         -2.2,
	"pain":          -2.3,
	"painful":       -2.4,
	"suffer":        -2.4,
	"suffering":     -2.5,
	"lonely":        -2.2,
	"alone":         -1.0,
	"isolated":      -1.7,
	"scared":        -2.0,
	"afraid":        -2.2,
	"fear":          -2.2,
	"anxious":       -1.9,
	"anxiety":       -2.0,
	"worried":       -1.8,
	"worry":         -1.8,
	"stress":        -1.8,
	"stressed":      -2.0,
	"tired":         -1.3,
	"exhausted":     -1.9,
	"sick":          -1.9,
	"fail":          -2.3,
	"failed":        -2.4,
	"failure":       -2.6,
	"lose":          -1.7,
	"lost":          -1.5,
	"loser":         -2.5,
	"broken":        -1.9,
	"wrong":         -1.6,
	"problem":       -1.3,
	"problems":      -1.4,
	"disaster":      -2.6,
	"disappointed":  -2.1,
	"disappointing": -2.1,
	"hopeless":      -2.7,
	"helpless":      -2.2,
	"worthless":     -2.8,
	"useless":       -1.9,
	"meaningless":   -2.1,
	"pointless":     -2.0,
	"empty":         -1.2,
	"numb":          -1.5,
	"die":           -2.9,
	"dying":         -2.8,
	"dead":          -2.9,
	"death":         -2.9,
	"kill":          -3.1,
	"killed":        -3.2,
	"murder":        -3.3,
	"destroy":       -2.6,
	"destroyed":     -2.7,
	"suicide":       -3.4,
	"suicidal":      -3.4,
	"harm":          -2.3,
	"ruined":        -2.4,
	"nightmare":     -2.2,
	"panic":         -2.2,
	"despair":       -2.9,
	"grief":         -2.5,
	"ashamed":       -2.2,
	"guilty":        -2.1,
	"regret":        -1.9,
	"stupid":        -2.4,
	"idiot":         -2.3,
	"ugly":          -2.4,
	"trapped":       -1.9,
	"overwhelmed":   -1.7,
}

// boosters scale the valence of the word that follows them.
var boosters = map[string]float64{
	"very":       1.3,
	"really":     1.25,
	"extremely":  1.45,
	"incredibly": 1.4,
	"super":      1.25,
	"so":         1.2,
	"totally":    1.25,
	"absolutely": 1.35,
	"completely": 1.3,
	"quite":      1.1,
	"somewhat":   0.85,
	"slightly":   0.7,
	"barely":     0.55,
	"hardly":     0.5,
	"kinda":      0.85,
	"kind":       0.9, // "kind of"
	"sort":       0.9, // "sort of"
}

// negations flip the valence of a nearby sentiment word.
var negations = map[string]bool{
	"not":     true,
	"no":      true,
	"never":   true,
	"none":    true,
	"nobody":  true,
	"nothing": true,
	"neither": true,
	"cant":    true,
	"cannot":  true,
	"wont":    true,
	"dont":    true,
	"doesnt":  true,
	"didnt":   true,
	"isnt":    true,
	"wasnt":   true,
	"arent":   true,
	"aint":    true,
	"without": true,
}
