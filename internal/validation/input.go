package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength            = 3
	MaxUsernameLength            = 30
	MinDisplayNameLength         = 2
	MaxDisplayNameLength         = 100
	MinProjectTitleLength        = 3
	MaxProjectTitleLength        = 200
	MinProjectDescriptionLength  = 10
	MaxProjectDescriptionLength  = 5000
	MinProposalCoverLetterLength = 10
	MaxProposalCoverLetterLength = 2000
	MaxBioLength                 = 1000
	MaxLocationLength            = 100
	MaxSkillLength               = 50
	MaxSkillsCount               = 50
	MinHourlyRate                = 0.0
	MaxHourlyRate                = 100000.0
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	// Базовая проверка формата
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	// Проверка на валидные символы в локальной части
	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	// Проверка на валидные символы в доменной части
	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	// Проверка длины
	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	// Проверка на допустимые символы (только буквы, цифры и подчеркивание)
	usernameRegex := regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	// Проверка, что не начинается с цифры
	if len(username) > 0 && unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateDisplayName проверяет отображаемое имя.
func ValidateDisplayName(displayName string) error {
	if displayName == "" {
		return fmt.Errorf("отображаемое имя обязательно")
	}

	displayName = strings.TrimSpace(displayName)

	// Проверка длины
	if err := ValidateLength("отображаемое имя", displayName, MinDisplayNameLength, MaxDisplayNameLength); err != nil {
		return err
	}

	// Проверка на недопустимые символы (только буквы, цифры, пробелы и некоторые спецсимволы)
	displayNameRegex := regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ0-9\s\-_.,!?()]+$`)
	if !displayNameRegex.MatchString(displayName) {
		return fmt.Errorf("отображаемое имя содержит недопустимые символы")
	}

	return nil
}

// ValidateProjectTitle проверяет заголовок проекта.
func ValidateProjectTitle(title string) error {
	if title == "" {
		return fmt.Errorf("заголовок проекта обязателен")
	}

	title = strings.TrimSpace(title)

	if err := ValidateLength("заголовок проекта", title, MinProjectTitleLength, MaxProjectTitleLength); err != nil {
		return err
	}

	return nil
}

// ValidateProjectDescription проверяет описание проекта.
func ValidateProjectDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание проекта обязательно")
	}

	description = strings.TrimSpace(description)

	if err := ValidateLength("описание проекта", description, MinProjectDescriptionLength, MaxProjectDescriptionLength); err != nil {
		return err
	}

	return nil
}

// ValidateProposalCoverLetter проверяет сопроводительное письмо.
func ValidateProposalCoverLetter(coverLetter string) error {
	if coverLetter == "" {
		return fmt.Errorf("сопроводительное письмо обязательно")
	}

	coverLetter = strings.TrimSpace(coverLetter)

	if err := ValidateLength("сопроводительное письмо", coverLetter, MinProposalCoverLetterLength, MaxProposalCoverLetterLength); err != nil {
		return err
	}

	return nil
}

// ValidateHourlyRate проверяет почасовую ставку.
func ValidateHourlyRate(rate *float64) error {
	if rate != nil {
		if *rate < MinHourlyRate {
			return fmt.Errorf("почасовая ставка не может быть отрицательной")
		}
		if *rate > MaxHourlyRate {
			return fmt.Errorf("почасовая ставка не может превышать %.0f", MaxHourlyRate)
		}
	}
	return nil
}

// ValidateSkills проверяет массив навыков.
func ValidateSkills(skills []string) error {
	if len(skills) > MaxSkillsCount {
		return fmt.Errorf("количество навыков не может превышать %d", MaxSkillsCount)
	}

	seen := make(map[string]bool)
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			return fmt.Errorf("навык не может быть пустым")
		}

		// Проверка длины навыка
		if utf8.RuneCountInString(skill) > MaxSkillLength {
			return fmt.Errorf("навык не может быть длиннее %d символов", MaxSkillLength)
		}

		// Проверка на дубликаты (без учета регистра)
		skillLower := strings.ToLower(skill)
		if seen[skillLower] {
			return fmt.Errorf("навык '%s' указан дважды", skill)
		}
		seen[skillLower] = true
	}

	return nil
}

// ValidateLocation проверяет местоположение.
func ValidateLocation(location *string) error {
	if location != nil && *location != "" {
		loc := strings.TrimSpace(*location)
		if err := ValidateLength("местоположение", loc, 0, MaxLocationLength); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBio проверяет биографию.
func ValidateBio(bio *string) error {
	if bio != nil && *bio != "" {
		bioStr := strings.TrimSpace(*bio)
		if err := ValidateLength("биография", bioStr, 0, MaxBioLength); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRequirementSkill проверяет навык в требовании.
func ValidateRequirementSkill(skill string) error {
	if skill == "" {
		return fmt.Errorf("навык в требовании обязателен")
	}

	skill = strings.TrimSpace(skill)

	if err := ValidateLength("навык", skill, 1, MaxSkillLength); err != nil {
		return err
	}

	return nil
}
