package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hireloop/interview-gateway/pkg/core/types"
)

// followupHistoryWindow bounds how much history conditions a follow-up
// question. Older answers add tokens without improving the question.
const (
	followupHistoryWindow = 3
	followupAnswerLimit   = 200
)

// difficultyDistribution maps an interview difficulty to the easy/medium/hard
// split of a predefined question set.
func difficultyDistribution(d types.Difficulty, count int) (easy, medium, hard int) {
	var easyFrac, mediumFrac float64
	switch d {
	case types.DifficultyLow:
		easyFrac, mediumFrac = 0.7, 0.3
	case types.DifficultyHigh:
		easyFrac, mediumFrac = 0.0, 0.3
	default:
		easyFrac, mediumFrac = 0.3, 0.4
	}
	easy = int(float64(count) * easyFrac)
	medium = int(float64(count) * mediumFrac)
	hard = count - easy - medium
	return easy, medium, hard
}

// truncateBytes caps s at n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

const predefinedSystemPrompt = "You are an expert in designing interview questions that uncover technical expertise and project experience."

func predefinedPrompt(req PredefinedRequest) string {
	title := req.Title
	if title == "" {
		title = "Technical Interview"
	}
	objective := req.Objective
	if objective == "" {
		objective = "Technical skills assessment"
	}
	easy, medium, hard := difficultyDistribution(req.Difficulty, req.QuestionCount)

	var b strings.Builder
	fmt.Fprintf(&b, `You are an interviewer designing questions that help hiring managers identify candidates with strong technical expertise and project experience.

Interview Title: %s
Interview Objective: %s

Guidelines:
- Focus on technical knowledge, problem-solving ability, and hands-on project experience. These carry the most weight.
- Include questions that assess problem-solving through practical examples from previous work.
- Address soft skills such as communication and teamwork, with less emphasis than technical ability.
- Keep a professional yet approachable tone.
- Ask concise open-ended questions of 30 words or less.

Generate exactly %d interview questions with this distribution:
- %d easy questions (basic concepts, fundamental knowledge)
- %d medium questions (intermediate concepts, practical experience, scenario-based)
- %d hard questions (advanced concepts, complex problem-solving)

Use the following context to generate the questions:
%s

Also generate a second-person description of the interview, 50 words or less, in the field 'description'. It must not paraphrase the objective; it should tell the candidate what they will experience, conversationally.

The field 'questions' must be an array of objects, each with the keys 'question' and 'difficulty'.

Strictly output only a JSON object with the keys 'questions' and 'description'.`,
		title, objective, req.QuestionCount, easy, medium, hard, req.ContextSummary)
	return b.String()
}

func openingPrompt(contextSummary string) string {
	return fmt.Sprintf(`Generate the first interview question for this role:

%s

The question should:
- Welcome the candidate warmly
- Ask about their background and experience
- Be conversational and professional
- Be appropriate for the role level

Return ONLY a JSON object with "question" and "text" fields (both the same question text). No extra text.`, contextSummary)
}

func followupPrompt(contextSummary string, history []types.QAPair) string {
	recent := history
	if len(recent) > followupHistoryWindow {
		recent = recent[len(recent)-followupHistoryWindow:]
	}
	var answers strings.Builder
	for i, qa := range recent {
		a := truncateBytes(qa.Answer, followupAnswerLimit)
		fmt.Fprintf(&answers, "Q%d: %s\nA%d: %s...\n\n", i+1, qa.Question, i+1, a)
	}
	summary := answers.String()
	if summary == "" {
		summary = "This is the first question."
	}
	return fmt.Sprintf(`Generate the next interview question based on this context:

Job Role: %s

Previous Q&A:
%s

Generate a relevant follow-up question that:
- Builds on the candidate's previous answers
- Deepens understanding of their experience and skills
- Is specific to the role
- Is professional and conversational

Return ONLY a JSON object with "question" and "text" fields (both the same question text). No extra text.`, contextSummary, summary)
}

const answerSystemPrompt = "You are an expert in analyzing interview answers."

func answerPrompt(question, answer string) string {
	return fmt.Sprintf(`Question: %s
Answer: %s

Evaluate (1-10 scale) and return JSON:
{"relevance_score": int, "completeness_score": int, "clarity_score": int, "overall_score": int, "strengths": [str], "weaknesses": [str], "suggestions": [str]}`, question, answer)
}

const sessionSystemPrompt = "You are an expert in analyzing interview transcripts. You must only use the main questions provided and not generate or infer additional questions. Be strict and accurate in scoring: penalize non-answers, evasive responses, and answers that indicate lack of knowledge."

func sessionPrompt(req SessionScoreRequest) string {
	var transcript strings.Builder
	for _, qa := range req.History {
		if qa.Question != "" {
			fmt.Fprintf(&transcript, "Interviewer: %s\n", qa.Question)
		}
		if qa.Answer != "" {
			fmt.Fprintf(&transcript, "Candidate: %s\n", qa.Answer)
		}
	}
	var main strings.Builder
	for i, q := range req.MainQuestions {
		fmt.Fprintf(&main, "%d. %s\n", i+1, q.Text)
	}
	return fmt.Sprintf(`Analyse the following interview transcript and provide structured feedback:

Transcript:
%s

Main Interview Questions:
%s

SCORING GUIDELINES:
- Non-answers or evasive responses ("no idea", "I don't know", "not sure", very short dismissive answers) must receive low scores: overall 0-30 for complete lack of knowledge, communication 1-3.
- If the candidate gave non-answers to multiple critical questions, the overall score must be in the 0-40 range.
- Communication score reflects the actual ability to communicate technical content, not politeness or fluency. A polite "no idea" scores 1-2.
- Only give scores of 7+ when the candidate provides meaningful, relevant answers with some depth.

Generate the following analytics:

1. Overall Score (0-100) and Overall Feedback (60 words), considering communication, confidence, clarity, relevance, depth of knowledge, problem-solving, and use of examples.

2. Communication Skills: Score (0-10) and Feedback (60 words). Rating: 10=Fully operational, 7=Effective despite inaccuracies, 5=Basic competence, 3=Great difficulty, 2=No ability, 1=Did not answer.

3. Summary for each main question. Output all questions. If a question was not found in the transcript: "Not Asked". If found but unanswered: "Not Answered". Otherwise a cohesive paragraph covering the candidate's response.

4. Soft skills summary (10-15 words): confidence, leadership, adaptability, critical thinking, decision making.

Output JSON:
{
"overallScore": number,
"overallFeedback": string,
"communication": { "score": number, "feedback": string },
"questionSummaries": [{ "question": string, "summary": string }],
"softSkillSummary": string
}`, transcript.String(), main.String())
}
