package route

import "strings"

// Instruction 把动作类型和修饰词翻译成可读的指令
func Instruction(maneuverType, modifier, name string) string {
	modifier = strings.TrimSpace(modifier)
	name = strings.TrimSpace(name)

	var text string
	switch maneuverType {
	case "depart":
		text = "Start walking"
		if name != "" {
			return text + " on " + name
		}
		return text
	case "arrive":
		return "Arrive at your destination"
	case "turn":
		text = turnPhrase(modifier)
	case "end of road":
		p := turnPhrase(modifier)
		text = "At the end of the road, " + strings.ToLower(p[:1]) + p[1:]
	case "fork":
		if modifier == "" {
			text = "Keep straight at the fork"
		} else {
			text = "Keep " + modifier + " at the fork"
		}
	case "continue":
		if modifier == "" || modifier == "straight" {
			text = "Continue straight"
		} else {
			text = "Continue " + modifier
		}
	default:
		text = "Continue"
	}

	if name != "" {
		text += " onto " + name
	}
	return text
}

func turnPhrase(modifier string) string {
	switch modifier {
	case "":
		return "Turn"
	case "uturn":
		return "Make a U-turn"
	case "straight":
		return "Go straight"
	default:
		return "Turn " + modifier
	}
}

// BuildSteps 生成从 1 开始连续编号的导航步骤
func BuildSteps(maneuvers []Maneuver) []Step {
	steps := make([]Step, 0, len(maneuvers))
	for i, m := range maneuvers {
		steps = append(steps, Step{
			Number:           i + 1,
			Instruction:      Instruction(m.Type, m.Modifier, m.Name),
			DistanceMeters:   m.DistanceMeters,
			DurationSeconds:  m.DurationSeconds,
			ManeuverType:     m.Type,
			ManeuverModifier: m.Modifier,
		})
	}
	return steps
}
